package provider

import (
	"regexp"
	"strconv"
	"strings"
)

var chineseDigits = [10]string{"零", "一", "二", "三", "四", "五", "六", "七", "八", "九"}

var numberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)*\b`)

// ToChineseNumerals rewrites Arabic numerals in text as Chinese numerals so
// the speech stage pronounces them. Four-digit numbers are read digit by
// digit (years), decimals use 点, and version strings like 1.5.2 become
// 一点五点二.
func ToChineseNumerals(text string) string {
	return numberPattern.ReplaceAllStringFunc(text, convertNumber)
}

func convertNumber(num string) string {
	parts := strings.Split(num, ".")

	// Version strings: every dot-separated part read as an integer.
	if len(parts) > 2 {
		converted := make([]string, len(parts))
		for i, p := range parts {
			converted[i] = integerToChinese(p)
		}
		return strings.Join(converted, "点")
	}

	// Plain decimals: integer part by value, fraction digit by digit.
	if len(parts) == 2 {
		var b strings.Builder
		b.WriteString(integerToChinese(parts[0]))
		b.WriteString("点")
		for _, d := range parts[1] {
			b.WriteString(chineseDigits[d-'0'])
		}
		return b.String()
	}

	return integerToChinese(num)
}

func integerToChinese(num string) string {
	// Four digits read digit-wise: years sound wrong as place values.
	if len(num) == 4 {
		return digitwise(num)
	}

	n, err := strconv.Atoi(num)
	if err != nil {
		return num
	}

	switch {
	case n == 0:
		return chineseDigits[0]
	case n < 10:
		return chineseDigits[n]
	case n < 100:
		return tensToChinese(n)
	case n < 1000:
		return hundredsToChinese(n)
	default:
		return digitwise(num)
	}
}

func tensToChinese(n int) string {
	tens, ones := n/10, n%10
	switch {
	case ones == 0:
		return chineseDigits[tens] + "十"
	case tens == 1:
		return "十" + chineseDigits[ones]
	default:
		return chineseDigits[tens] + "十" + chineseDigits[ones]
	}
}

func hundredsToChinese(n int) string {
	hundreds, rest := n/100, n%100
	out := chineseDigits[hundreds] + "百"
	switch {
	case rest == 0:
		return out
	case rest < 10:
		return out + "零" + chineseDigits[rest]
	case rest%10 == 0:
		return out + chineseDigits[rest/10] + "十"
	default:
		// Inside a hundreds reading the tens digit is always voiced: 115 is
		// 一百一十五, not 一百十五.
		return out + chineseDigits[rest/10] + "十" + chineseDigits[rest%10]
	}
}

func digitwise(num string) string {
	var b strings.Builder
	for _, d := range num {
		b.WriteString(chineseDigits[d-'0'])
	}
	return b.String()
}
