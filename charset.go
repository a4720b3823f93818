package telnet

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

type codePage struct {
	name    string
	encoder *encoding.Encoder
	decoder transform.Transformer
}

// Charset tracks the two character sets an Interpreter can be speaking: the
// default, fixed at construction time, and the one negotiated via the
// CHARSET module (RFC 2066), if any. Until a negotiation completes,
// "negotiated" is just a copy of "default".
//
// RFC 2066 specifies that a negotiated charset only applies in TRANSMIT-BINARY
// mode; CharsetUsageAlways exists because most MUD clients and servers never
// negotiate binary mode and expect CHARSET to take effect immediately anyway.
type Charset struct {
	usage CharsetUsage

	defaultLock sync.Mutex
	defaultPage codePage

	negotiatedLock sync.Mutex
	negotiatedPage codePage
}

// NewCharset builds a Charset whose default (and, until negotiation,
// negotiated) encoding is the named IANA character set.
func NewCharset(defaultName string, usage CharsetUsage) (*Charset, error) {
	c := &Charset{usage: usage}

	page, err := buildCodePage(defaultName)
	if err != nil {
		return nil, err
	}

	c.defaultPage = page
	c.negotiatedPage = page
	return c, nil
}

// NegotiatedName returns the name of the charset CHARSET negotiation settled
// on, or the default name if nothing has been negotiated yet.
func (c *Charset) NegotiatedName() string {
	c.negotiatedLock.Lock()
	defer c.negotiatedLock.Unlock()
	return c.negotiatedPage.name
}

// DefaultName returns the name of the default character set.
func (c *Charset) DefaultName() string {
	c.defaultLock.Lock()
	defer c.defaultLock.Unlock()
	return c.defaultPage.name
}

// activePage returns whichever page Encode/Decode would use right now,
// given CharsetUsage.
func (c *Charset) activePage() codePage {
	if c.usage == CharsetUsageAlways {
		c.negotiatedLock.Lock()
		defer c.negotiatedLock.Unlock()
		return c.negotiatedPage
	}

	c.defaultLock.Lock()
	defer c.defaultLock.Unlock()
	return c.defaultPage
}

// Encode converts UTF-8 text into the currently active encoding.
func (c *Charset) Encode(text string) ([]byte, error) {
	page := c.activePage()
	return page.encoder.Bytes([]byte(text))
}

// Decode converts incoming bytes in the currently active encoding into UTF-8,
// one rune's worth of source bytes at a time, returning how many source bytes
// were consumed to produce the decoded prefix.
func (c *Charset) Decode(dst []byte, src []byte) (consumed int, produced int, err error) {
	if len(src) == 0 {
		return 0, 0, nil
	}

	page := c.activePage()

	for i := 0; i < len(src); i++ {
		var dstBytes, srcBytes int
		dstBytes, srcBytes, err = page.decoder.Transform(dst, src[:i+1], false)
		if err != nil && !errors.Is(err, transform.ErrShortDst) && !errors.Is(err, transform.ErrShortSrc) {
			return srcBytes, dstBytes, err
		}
		if dstBytes > 0 {
			return srcBytes, dstBytes, nil
		}
	}

	return 0, 0, err
}

// DecodeAll converts a complete byte slice in the active encoding into UTF-8
// in one pass. Unlike Decode, which consumes a growing prefix as bytes
// stream in off the wire, this is for callers that already hold a complete
// line and just want it decoded.
func (c *Charset) DecodeAll(src []byte) (string, error) {
	page := c.activePage()

	dst := make([]byte, len(src)*4+16)
	for {
		n, _, err := page.decoder.Transform(dst, src, true)
		if errors.Is(err, transform.ErrShortDst) {
			dst = make([]byte, len(dst)*2)
			continue
		}
		if err != nil && !errors.Is(err, transform.ErrShortSrc) {
			return string(dst[:n]), err
		}
		return string(dst[:n]), nil
	}
}

func buildCodePage(name string) (codePage, error) {
	if strings.EqualFold(name, "utf-8") {
		// The replacement encoding passes valid UTF-8 through untouched and
		// substitutes the replacement character for anything invalid.
		return codePage{
			name:    "UTF-8",
			encoder: encoding.Replacement.NewEncoder(),
			decoder: encoding.Replacement.NewEncoder(),
		}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return codePage{}, err
	}
	if enc == nil {
		return codePage{}, errors.New("telnet: unsupported character set " + name)
	}

	canonicalName, err := ianaindex.IANA.Name(enc)
	if err != nil {
		return codePage{}, err
	}

	encoder := enc.NewEncoder()
	var decoder transform.Transformer

	if strings.EqualFold(name, "us-ascii") {
		// Let the remote send UTF-8 even if we nominally think we're ASCII;
		// we still only ever send plain ASCII ourselves.
		decoder = encoding.Replacement.NewEncoder()
	} else {
		decoder = enc.NewDecoder()
	}

	return codePage{name: canonicalName, encoder: encoder, decoder: decoder}, nil
}

// PromoteDefault switches the default (and, if it matched, the negotiated)
// charset from oldName to newName, reporting whether it actually changed
// anything. This is how a CHARSET module promotes US-ASCII to UTF-8 the
// moment the remote proves it understands UTF-8, without disturbing an
// already-completed negotiation to some other charset.
func (c *Charset) PromoteDefault(oldName, newName string) (bool, error) {
	c.defaultLock.Lock()
	defer c.defaultLock.Unlock()

	if c.defaultPage.name != oldName {
		return false, nil
	}

	page, err := buildCodePage(newName)
	if err != nil {
		return false, err
	}

	c.negotiatedLock.Lock()
	if c.negotiatedPage.name == oldName {
		c.negotiatedPage = page
	}
	c.negotiatedLock.Unlock()

	c.defaultPage = page
	return true, nil
}

// SetNegotiated replaces the negotiated charset, as a CHARSET module does
// once both sides settle on a character set name.
func (c *Charset) SetNegotiated(name string) error {
	page, err := buildCodePage(name)
	if err != nil {
		return err
	}

	c.negotiatedLock.Lock()
	defer c.negotiatedLock.Unlock()
	c.negotiatedPage = page
	return nil
}
