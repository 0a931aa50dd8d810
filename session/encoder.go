package session

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	// CurrentSchemaVersion is the version byte written by [Encode].
	CurrentSchemaVersion = 1

	maxMetadataBytes = 64 << 10
)

var (
	// ErrUnsupportedSchema is returned when a blob carries an unknown version byte.
	ErrUnsupportedSchema = errors.New("unsupported session schema version")
	// ErrCorrupt is returned when a blob is truncated or malformed.
	ErrCorrupt = errors.New("session blob corrupt")
)

// Encode serializes s into the versioned binary cache format.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	for _, field := range []struct {
		name, value string
	}{
		{"access token", s.AccessToken},
		{"refresh token", s.RefreshToken},
		{"token type", s.TokenType},
		{"identity id", s.Identity.ID},
		{"email", s.Identity.Email},
	} {
		if err := writeString(&buf, field.value); err != nil {
			return nil, fmt.Errorf("%s: %w", field.name, err)
		}
	}

	writeTime(&buf, s.ExpiresAt)
	writeOptionalTime(&buf, s.Identity.EmailConfirmedAt)
	writeOptionalTime(&buf, s.Identity.LastSignInAt)

	var meta []byte
	if len(s.Identity.Metadata) > 0 {
		var err error
		meta, err = json.Marshal(s.Identity.Metadata)
		if err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
		if len(meta) > maxMetadataBytes {
			return nil, errors.New("metadata too large")
		}
	}
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(meta)))
	buf.Write(meta)

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}

	s := &Session{}
	for _, dst := range []*string{
		&s.AccessToken,
		&s.RefreshToken,
		&s.TokenType,
		&s.Identity.ID,
		&s.Identity.Email,
	} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}

	if s.ExpiresAt, err = readTime(reader); err != nil {
		return nil, err
	}
	if s.Identity.EmailConfirmedAt, err = readOptionalTime(reader); err != nil {
		return nil, err
	}
	if s.Identity.LastSignInAt, err = readOptionalTime(reader); err != nil {
		return nil, err
	}

	var metaLen uint32
	if err := binary.Read(reader, binary.BigEndian, &metaLen); err != nil {
		return nil, ErrCorrupt
	}
	if metaLen > maxMetadataBytes {
		return nil, ErrCorrupt
	}
	if metaLen > 0 {
		meta := make([]byte, metaLen)
		if _, err := io.ReadFull(reader, meta); err != nil {
			return nil, ErrCorrupt
		}
		if err := json.Unmarshal(meta, &s.Identity.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", ErrCorrupt, err)
		}
	}

	if reader.Len() != 0 {
		return nil, ErrCorrupt
	}
	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > math.MaxUint16 {
		return errors.New("value too long")
	}
	_ = binary.Write(buf, binary.BigEndian, uint16(len(v)))
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", ErrCorrupt
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", ErrCorrupt
	}
	return string(b), nil
}

func writeTime(buf *bytes.Buffer, t time.Time) {
	var v int64
	if !t.IsZero() {
		v = t.UnixNano()
	}
	_ = binary.Write(buf, binary.BigEndian, v)
}

func readTime(r *bytes.Reader) (time.Time, error) {
	var v int64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return time.Time{}, ErrCorrupt
	}
	if v == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, v).UTC(), nil
}

func writeOptionalTime(buf *bytes.Buffer, t *time.Time) {
	if t == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeTime(buf, *t)
}

func readOptionalTime(r *bytes.Reader) (*time.Time, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	switch flag {
	case 0:
		return nil, nil
	case 1:
		t, err := readTime(r)
		if err != nil {
			return nil, err
		}
		return &t, nil
	default:
		return nil, ErrCorrupt
	}
}
