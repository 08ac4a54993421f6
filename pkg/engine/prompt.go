package engine

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/suffix-labs/hns-signer/pkg/crypto"
	"github.com/suffix-labs/hns-signer/pkg/hns"
)

// PromptKind identifies what a prompt asks the user to approve.
type PromptKind uint8

const (
	PromptOutput PromptKind = iota
	PromptFee
	PromptTxID
	PromptPublicKey
	PromptWarning
)

// Prompt is what the confirmation UI shows: a short header and a message
// that may be longer than the display and is paged.
type Prompt struct {
	Kind    PromptKind
	Header  string
	Message string
}

// DefaultPageWidth is the number of characters shown at once.
const DefaultPageWidth = 12

// Pager scrolls a window of fixed width over a prompt's message. Moving to
// the same position always yields the same window.
type Pager struct {
	text  string
	width int
	pos   int
}

// NewPager returns a pager showing width characters of text.
func NewPager(text string, width int) *Pager {
	if width <= 0 {
		width = DefaultPageWidth
	}
	return &Pager{text: text, width: width}
}

// Window returns the visible part of the message.
func (p *Pager) Window() string {
	end := p.pos + p.width
	if end > len(p.text) {
		end = len(p.text)
	}
	return p.text[p.pos:end]
}

func (p *Pager) last() int {
	if len(p.text) <= p.width {
		return 0
	}
	return len(p.text) - p.width
}

// Left scrolls one character left.
func (p *Pager) Left() {
	if p.pos > 0 {
		p.pos--
	}
}

// Right scrolls one character right.
func (p *Pager) Right() {
	if p.pos < p.last() {
		p.pos++
	}
}

// CanLeft and CanRight report whether scrolling would move the window.
func (p *Pager) CanLeft() bool  { return p.pos > 0 }
func (p *Pager) CanRight() bool { return p.pos < p.last() }

// Pages returns every distinct window from left to right.
func (p *Pager) Pages() []string {
	pages := make([]string, 0, p.last()+1)
	saved := p.pos
	for p.pos = 0; ; p.pos++ {
		pages = append(pages, p.Window())
		if p.pos >= p.last() {
			break
		}
	}
	p.pos = saved
	return pages
}

// FormatValue renders dollarydoos as HNS with six decimals.
func FormatValue(value uint64) string {
	const unit = 1000000
	frac := strconv.FormatUint(value%unit, 10)
	return strconv.FormatUint(value/unit, 10) + "." + strings.Repeat("0", 6-len(frac)) + frac + " HNS"
}

func formatAddress(net *hns.Network, addr hns.Address) string {
	s, err := crypto.EncodeAddress(net.HRP, addr.Version, addr.Hash)
	if err != nil {
		return fmt.Sprintf("v%d:%s", addr.Version, hex.EncodeToString(addr.Hash))
	}
	return s
}

// OutputPrompt describes an output for confirmation.
func OutputPrompt(net *hns.Network, out *CurrentOutput, count int) Prompt {
	header := fmt.Sprintf("Output %d/%d", out.Index+1, count)
	if out.Change {
		header += " (change)"
	}

	var sb strings.Builder
	if nc, ok := out.Covenant.(hns.NameCovenant); ok {
		_, height, name := nc.NameInfo()
		fmt.Fprintf(&sb, "%s %s", out.CovenantType, name)
		if height != 0 {
			fmt.Fprintf(&sb, " @%d", height)
		}
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "%s to %s", FormatValue(out.Value), formatAddress(net, out.Address))

	if t, ok := out.Covenant.(hns.TransferCovenant); ok {
		fmt.Fprintf(&sb, ", transfer to %s", formatAddress(net, t.Destination))
	}
	return Prompt{Kind: PromptOutput, Header: header, Message: sb.String()}
}

// FeePrompt describes the transaction fee.
func FeePrompt(fee uint64) Prompt {
	return Prompt{Kind: PromptFee, Header: "Fee", Message: FormatValue(fee)}
}

// TxIDPrompt asks the user to compare the txid with the host's.
func TxIDPrompt(txid [hns.HashSize]byte) Prompt {
	return Prompt{Kind: PromptTxID, Header: "Confirm txid", Message: hex.EncodeToString(txid[:])}
}
