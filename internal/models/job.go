package models

import (
	"bytes"
	"encoding/json"
)

// Job is a posting as returned by the backend's /api/jobs listing. Only the
// fields the clients read are decoded; anything else, id included, is
// ignored.
type Job struct {
	Title     string `json:"title"`
	Company   string `json:"company"`
	Status    string `json:"status,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// UnmarshalJSON decodes one record without failing the whole listing on an
// unexpected field type. Non-string title, company and status read as
// empty. A non-string expires_at keeps its raw JSON text so it is reported
// as unparseable rather than silently dropped.
func (j *Job) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*j = Job{
		Title:     stringField(fields["title"]),
		Company:   stringField(fields["company"]),
		Status:    stringField(fields["status"]),
		ExpiresAt: stringField(fields["expires_at"]),
	}
	if j.ExpiresAt == "" {
		if raw := bytes.TrimSpace(fields["expires_at"]); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) && raw[0] != '"' {
			j.ExpiresAt = string(raw)
		}
	}
	return nil
}

func stringField(raw json.RawMessage) string {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

// DisplayTitle returns the title, or "Unknown" when the backend sent none.
func (j Job) DisplayTitle() string {
	return orUnknown(j.Title)
}

// DisplayCompany returns the company, or "Unknown" when the backend sent none.
func (j Job) DisplayCompany() string {
	return orUnknown(j.Company)
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}
