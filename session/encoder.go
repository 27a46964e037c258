package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionV2 = 2
	sessionFormatVersionV1 = 1
)

// Encode serializes a [Session] into the compact binary wire format.
// Sessions without a fingerprint binding use the v1 layout, bound sessions
// the v2 layout; the encoder is append-only and never reinterprets old
// fields.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	version := byte(sessionFormatVersionV1)
	if s.HasFingerprint {
		version = sessionFormatVersionV2
	}
	buf.WriteByte(version)

	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)

	if s.HasFingerprint {
		buf.Write(s.FingerprintHash[:])
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a binary session blob produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionV2 && version != sessionFormatVersionV1 {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	s.UserID = string(userID)

	if version == sessionFormatVersionV2 {
		if _, err := io.ReadFull(reader, s.FingerprintHash[:]); err != nil {
			return nil, err
		}
		s.HasFingerprint = true
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}
