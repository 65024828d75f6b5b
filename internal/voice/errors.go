package voice

import "errors"

var ErrNoSource = errors.New("voice store is not configured")
