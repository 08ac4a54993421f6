package hns

import "fmt"

const (
	// MinNameSize and MaxNameSize bound a Handshake name.
	MinNameSize = 1
	MaxNameSize = 63
)

// ValidateName checks a plaintext name against the Handshake naming rules:
// 1-63 characters from [a-z0-9-_], not starting or ending with - or _.
func ValidateName(name []byte) error {
	if len(name) < MinNameSize || len(name) > MaxNameSize {
		return NewError(ErrEncoding, CodeInvalidName,
			fmt.Sprintf("name length %d outside %d-%d", len(name), MinNameSize, MaxNameSize))
	}

	for i, ch := range name {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'z':
		case ch == '-' || ch == '_':
			if i == 0 || i == len(name)-1 {
				return NewError(ErrEncoding, CodeInvalidName,
					fmt.Sprintf("name may not start or end with %q", ch))
			}
		default:
			return NewError(ErrEncoding, CodeInvalidName,
				fmt.Sprintf("invalid character 0x%02x at %d", ch, i))
		}
	}
	return nil
}
