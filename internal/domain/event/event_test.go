package event

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

var fixedNow = time.Unix(1_700_000_000, 0)

// TestEncodeDecode_RoundTrip проверяет, что Decode(Encode(...)) восстанавливает
// запись с проставленными created_at и schema_version.
func TestEncodeDecode_RoundTrip(t *testing.T) {
	fields := []Fields{
		{VideoMsgID: 42, FileID: "BAACAgIAAx", ThumbFileID: "AAMCAgADGQ", Title: "Кот", Description: "про кота", Duration: 10},
		{VideoMsgID: 7, FileID: "BAAC", Title: "без превью"},
		{VideoMsgID: 1, FileID: "x", Title: "дробная длительность", Duration: 12.5},
	}

	for _, f := range fields {
		e := New(f, fixedNow)
		data, err := Encode(e)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}

		got, outcome := Decode(data)
		if outcome != OutcomeDecoded {
			t.Fatalf("Decode outcome = %s, ожидался decoded", outcome)
		}

		want := e.Record()
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Errorf("запись после round-trip отличается (-want +got):\n%s", diff)
		}
		if got.CreatedAt != fixedNow.Unix() {
			t.Errorf("CreatedAt = %d, ожидалось %d", got.CreatedAt, fixedNow.Unix())
		}
		if got.SchemaVersion != model.SchemaVersion {
			t.Errorf("SchemaVersion = %d, ожидалась %d", got.SchemaVersion, model.SchemaVersion)
		}
	}
}

func TestEncode_IndentedWireFormat(t *testing.T) {
	data, err := Encode(New(Fields{VideoMsgID: 5, FileID: "f", Title: "t"}, fixedNow))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"type": "video_meta"`, `"schema_version": 1`, `"video_msg_id": 5`, `"thumb_file_id": ""`, `"uploaded_at": 1700000000`} {
		if !strings.Contains(s, key) {
			t.Errorf("в событии нет %s:\n%s", key, s)
		}
	}
}

func TestEncode_RejectsForeignType(t *testing.T) {
	e := New(Fields{VideoMsgID: 1, Title: "t"}, fixedNow)
	e.Type = "chat"
	if _, err := Encode(e); err == nil {
		t.Error("ожидалась ошибка для чужого типа события")
	}
}

func TestDecode_Outcomes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Outcome
	}{
		{"пустой текст", "   ", OutcomeEmpty},
		{"обычный текст", "Всем привет!", OutcomeMalformed},
		{"битый JSON", `{"type": "video_meta",`, OutcomeMalformed},
		{"другой тип", `{"type":"announcement","text":"hi"}`, OutcomeForeignType},
		{"тип не строка", `{"type": 1}`, OutcomeForeignType},
		{"без типа", `{"video_msg_id": 1}`, OutcomeForeignType},
		{"массив", `[1,2,3]`, OutcomeMalformed},
		{"нет id", `{"type":"video_meta","title":"t","file_id":"f"}`, OutcomeInvalid},
		{"отрицательная длительность", `{"type":"video_meta","video_msg_id":3,"title":"t","duration":-5}`, OutcomeInvalid},
		{"заголовок не строка", `{"type":"video_meta","video_msg_id":3,"title":5}`, OutcomeMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, got := Decode([]byte(tt.raw))
			if got != tt.want {
				t.Errorf("outcome = %s, ожидался %s", got, tt.want)
			}
			if rec != nil {
				t.Errorf("для исхода %s запись должна быть nil, получено %+v", got, rec)
			}
		})
	}
}

func TestDecode_DefaultsAndCoercion(t *testing.T) {
	rec, outcome := Decode([]byte(`{"type":"video_meta","video_msg_id":"105","file_id":"f"}`))
	if outcome != OutcomeDecoded {
		t.Fatalf("outcome = %s", outcome)
	}

	want := model.VideoRecord{
		ID:            "105",
		Title:         "Untitled",
		PrimaryHandle: "f",
		SchemaVersion: model.SchemaVersion,
	}
	if diff := cmp.Diff(want, *rec); diff != "" {
		t.Errorf("значения по умолчанию (-want +got):\n%s", diff)
	}
}

func TestDecode_NumericIDCoercedToString(t *testing.T) {
	rec, outcome := Decode([]byte(`{"type":"video_meta","video_msg_id":77,"title":"t","uploaded_at":1700000001,"schema_version":2}`))
	if outcome != OutcomeDecoded {
		t.Fatalf("outcome = %s", outcome)
	}
	if rec.ID != "77" {
		t.Errorf("ID = %q, ожидалось 77", rec.ID)
	}
	if rec.CreatedAt != 1700000001 {
		t.Errorf("CreatedAt = %d", rec.CreatedAt)
	}
	if rec.SchemaVersion != 2 {
		t.Errorf("SchemaVersion = %d, ожидалась 2", rec.SchemaVersion)
	}
}
