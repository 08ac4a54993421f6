package engine

import (
	"github.com/suffix-labs/hns-signer/pkg/apdu"
)

// Confirmer shows a prompt to the user and returns their decision.
type Confirmer interface {
	Confirm(p Prompt) bool
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(p Prompt) bool

// Confirm calls f(p).
func (f ConfirmFunc) Confirm(p Prompt) bool {
	return f(p)
}

// AcceptAll approves every prompt.
var AcceptAll = ConfirmFunc(func(Prompt) bool { return true })

// Device runs a Session behind an apdu.Transport: every prompt raised by a
// message is put to the Confirmer before the response is returned.
type Device struct {
	session *Session
	confirm Confirmer
}

// NewDevice returns a device answering commands with session.
func NewDevice(session *Session, confirm Confirmer) *Device {
	return &Device{session: session, confirm: confirm}
}

// Session returns the underlying session.
func (d *Device) Session() *Session {
	return d.session
}

// Exchange handles cmd and resolves its prompts. Engine failures are
// reported in the status word, never as an error.
func (d *Device) Exchange(cmd apdu.Command) (apdu.Response, error) {
	reply, err := d.session.Handle(cmd)
	for err == nil && reply.Prompt != nil {
		reply, err = d.session.Resolve(d.confirm.Confirm(*reply.Prompt))
	}
	return apdu.NewResponse(reply.Data, err), nil
}

// ExchangeRaw handles an encoded command and returns the encoded response.
func (d *Device) ExchangeRaw(b []byte) []byte {
	cmd, err := apdu.DecodeCommand(b)
	if err != nil {
		d.session.Reset()
		return apdu.NewResponse(nil, err).Encode()
	}
	resp, _ := d.Exchange(cmd)
	return resp.Encode()
}
