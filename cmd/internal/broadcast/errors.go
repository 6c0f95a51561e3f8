package broadcast

import "errors"

// ErrIndexOutOfRange is returned by Update/Delete when the index does not address an item.
var ErrIndexOutOfRange = errors.New("broadcast: index out of range")
