package models

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

// jsonTag extracts the json tag name from a struct field.
func jsonTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("json")
}

// assertJSONTag checks that a struct field carries the backend's exact
// field name. These names are the wire format; renaming one breaks the
// deployed backend contract.
func assertJSONTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := jsonTag(t, typ, fieldName)
	if tag != expected {
		t.Errorf("%s.%s json tag = %q, want %q", typ.Name(), fieldName, tag, expected)
	}
}

func TestServiceRequestWireNames(t *testing.T) {
	typ := reflect.TypeOf(ServiceRequest{})

	// The backend's misspelled field names are load-bearing.
	assertJSONTag(t, typ, "PreferedDate", "prefered_date")
	assertJSONTag(t, typ, "PreferedTimeSlot", "prefered_time_slot")
	assertJSONTag(t, typ, "AdditionalDetails", "additional_details")
	assertJSONTag(t, typ, "IsReviewed", "is_reviewed")
	assertJSONTag(t, typ, "DateCreated", "date_created")
}

func TestRequestFileRelationShape(t *testing.T) {
	assertJSONTag(t, reflect.TypeOf(RequestFile{}), "File", "directus_files_id")
}

func TestStatusConstants(t *testing.T) {
	statuses := map[string]string{
		StatusPending:   "pending",
		StatusScheduled: "scheduled",
		StatusDone:      "done",
		StatusRejected:  "rejected",
	}
	for got, want := range statuses {
		if got != want {
			t.Errorf("status constant = %q, want %q", got, want)
		}
	}
}

func TestChatMessageUnmarshal(t *testing.T) {
	payload := []byte(`{
		"id": 7,
		"message": "the leak is under the sink",
		"sender": {"id": "u-1", "first_name": "Nadia"},
		"request": {"id": 42},
		"date_created": "2026-03-01T09:30:00Z"
	}`)

	var m ChatMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatalf("unmarshal chat message: %v", err)
	}
	if m.ID != 7 {
		t.Errorf("ID = %d, want 7", m.ID)
	}
	if m.Sender.FirstName != "Nadia" {
		t.Errorf("Sender.FirstName = %q, want Nadia", m.Sender.FirstName)
	}
	if m.Request.ID != 42 {
		t.Errorf("Request.ID = %d, want 42", m.Request.ID)
	}
	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if !m.DateCreated.Equal(want) {
		t.Errorf("DateCreated = %v, want %v", m.DateCreated, want)
	}
}

func TestServiceRequestNullDateUpdated(t *testing.T) {
	payload := []byte(`{"id": 1, "status": "pending", "date_updated": null}`)

	var r ServiceRequest
	if err := json.Unmarshal(payload, &r); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if r.DateUpdated != nil {
		t.Errorf("DateUpdated = %v, want nil", r.DateUpdated)
	}
}
