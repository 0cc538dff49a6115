// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/danielhkuo/tallywatch/models"
)

var (
	ErrRecordIncomplete = errors.New("bundle is missing its vote or seat record")
	ErrDuplicateRecord  = errors.New("bundle contains a record twice")
	ErrMalformedBundle  = errors.New("bundle is not a readable archive")
)

// voteEntryMarker identifies the vote distribution file inside an archive.
// Every other JSON entry is the seat record.
const voteEntryMarker = "rostfordelning"

// Decoder turns the bytes of one cached blob into a bundle triple.
type Decoder interface {
	Decode(data []byte) (models.Bundle, error)
}

// DecoderFunc adapts a plain function to the Decoder interface.
type DecoderFunc func(data []byte) (models.Bundle, error)

func (f DecoderFunc) Decode(data []byte) (models.Bundle, error) {
	return f(data)
}

// ZipDecoder reads the authority's zip archives of JSON files.
type ZipDecoder struct{}

func NewZipDecoder() *ZipDecoder {
	return &ZipDecoder{}
}

// Decode reads exactly one vote file and one seat file from the archive.
func (d *ZipDecoder) Decode(data []byte) (models.Bundle, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.Bundle{}, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}

	var votes *voteFile
	var seats *seatFile

	for _, entry := range archive.File {
		name := path.Base(entry.Name)
		if !strings.HasSuffix(name, "json") {
			continue
		}

		if strings.Contains(name, voteEntryMarker) {
			if votes != nil {
				return models.Bundle{}, fmt.Errorf("%w: vote data in %s", ErrDuplicateRecord, name)
			}
			votes = &voteFile{}
			if err := decodeEntry(entry, votes); err != nil {
				return models.Bundle{}, err
			}
			continue
		}

		if seats != nil {
			return models.Bundle{}, fmt.Errorf("%w: seat data in %s", ErrDuplicateRecord, name)
		}
		seats = &seatFile{}
		if err := decodeEntry(entry, seats); err != nil {
			return models.Bundle{}, err
		}
	}

	if votes == nil {
		return models.Bundle{}, fmt.Errorf("%w: vote data missing", ErrRecordIncomplete)
	}
	if seats == nil {
		return models.Bundle{}, fmt.Errorf("%w: seat data missing", ErrRecordIncomplete)
	}

	seatRecord := seats.toModel()
	return models.Bundle{
		Region: seatRecord.Region,
		Votes:  votes.toModel(),
		Seats:  seatRecord,
	}, nil
}

func decodeEntry(entry *zip.File, v interface{}) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", entry.Name, err)
	}
	defer rc.Close()

	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", entry.Name, err)
	}
	return nil
}
