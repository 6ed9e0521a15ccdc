package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/validation"
)

// DecodeStructured parses structured submission data into a DesignRecord and checks it.
// Unknown keys, wrong types and out-of-range values are malformed input.
func DecodeStructured(raw json.RawMessage) (model.DesignRecord, error) {
	var rec model.DesignRecord
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return model.DesignRecord{}, NewStageError(StageDecode, KindMalformedInput, fmt.Errorf("decode design record: %w", err))
	}
	if dec.More() {
		return model.DesignRecord{}, NewStageError(StageDecode, KindMalformedInput, errors.New("trailing data after design record"))
	}
	if err := validation.Struct(rec); err != nil {
		return model.DesignRecord{}, NewStageError(StageDecode, KindMalformedInput, err)
	}
	return rec, nil
}

// DecodeFreeText returns the trimmed description of a free_text submission.
func DecodeFreeText(raw json.RawMessage) (string, error) {
	var data model.FreeTextData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", NewStageError(StageDecode, KindMalformedInput, fmt.Errorf("decode free text data: %w", err))
	}
	data.Description = strings.TrimSpace(data.Description)
	if err := validation.Struct(data); err != nil {
		return "", NewStageError(StageDecode, KindMalformedInput, err)
	}
	return data.Description, nil
}
