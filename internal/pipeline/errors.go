package pipeline

import "errors"

// ErrTranslationNotReady is returned when synthesis is requested for a
// chapter whose translation has not completed.
var ErrTranslationNotReady = errors.New("translation is not ready")
