package card

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

// Sentinel errors for card operations.
var (
	// ErrNotFound covers both a missing card and a card owned by someone
	// else. Callers must not be able to tell the two apart.
	ErrNotFound = errors.New("card not found")

	// ErrConflict means the card changed since the version the caller read.
	ErrConflict = errors.New("card version conflict")

	// ErrInvalidAmount means a request body had no usable amount.
	ErrInvalidAmount = errors.New("invalid card amount")
)

// Card is a monetary record owned by exactly one user.
type Card struct {
	// ID is assigned by the store and never changes. Zero means unsaved.
	ID int64

	// Amount may be negative.
	Amount decimal.Decimal

	// Owner is always the username of the caller that last saved the card.
	Owner string

	// Version increments on every save. Exposed as the ETag, not in JSON.
	Version int64
}

// MarshalJSON renders {"id": number|null, "amount": number, "owner": string}.
func (c Card) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	if c.ID == 0 {
		buf.WriteString("null")
	} else {
		buf.WriteString(strconv.FormatInt(c.ID, 10))
	}
	buf.WriteString(`,"amount":`)
	buf.WriteString(c.Amount.String())
	buf.WriteString(`,"owner":`)
	owner, err := json.Marshal(c.Owner)
	if err != nil {
		return nil, err
	}
	buf.Write(owner)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FormatID renders a card id as it appears in paths.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID parses a path segment as a card id. Anything that is not a
// positive base-10 integer is reported as ErrNotFound.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, ErrNotFound
	}
	return id, nil
}

// ETag returns the quoted entity tag for the card's version.
func (c Card) ETag() string {
	return strconv.Quote(strconv.FormatInt(c.Version, 10))
}

// ParseETag reads an If-Match value produced by ETag. Weak tags are accepted.
func ParseETag(tag string) (int64, error) {
	if len(tag) > 2 && tag[:2] == "W/" {
		tag = tag[2:]
	}
	unquoted, err := strconv.Unquote(tag)
	if err != nil {
		unquoted = tag
	}
	v, err := strconv.ParseInt(unquoted, 10, 64)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%w: bad entity tag %q", ErrConflict, tag)
	}
	return v, nil
}

// Draft is the client-controlled part of a card. Id and owner are never
// taken from a client.
type Draft struct {
	Amount decimal.Decimal
}

// draftPayload mirrors the record JSON; id and owner are decoded only so
// that their presence is tolerated.
type draftPayload struct {
	ID     json.RawMessage `json:"id"`
	Amount json.RawMessage `json:"amount"`
	Owner  json.RawMessage `json:"owner"`
}

// DecodeDraft reads a card JSON body holding exactly one object. The amount
// is required and must be a JSON number; id and owner are ignored.
func DecodeDraft(r io.Reader) (Draft, error) {
	var p draftPayload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return Draft{}, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Draft{}, fmt.Errorf("%w: unexpected data after the card object", ErrInvalidAmount)
	}

	raw := bytes.TrimSpace(p.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Draft{}, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if raw[0] == '"' {
		return Draft{}, fmt.Errorf("%w: amount must be a number", ErrInvalidAmount)
	}
	amt, err := decimal.NewFromString(string(raw))
	if err != nil {
		return Draft{}, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	return Draft{Amount: amt}, nil
}
