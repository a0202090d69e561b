package queue

import "errors"

// ErrDrainLimit — Drain выполнил слишком много вызовов подряд;
// вероятно, обработчики порождают вызовы бесконечно.
var ErrDrainLimit = errors.New("drain step limit exceeded")
