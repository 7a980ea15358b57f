package hook

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	apperrors "github.com/jittakal/kafeventexport/internal/errors"
	"github.com/jittakal/kafeventexport/pkg/message"
)

func TestNewJSONExporter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	exporter, err := NewJSONExporter([]any{
		"/id",
		[]any{"/ts", "timestamp", "store_true", "exists"},
		map[string]any{"jpointer": "/env", "action": "discard_false", "filter": "match", "data": "prod"},
	}, logger)
	if err != nil {
		t.Fatalf("NewJSONExporter() error = %v", err)
	}

	if got := exporter.Name(); got != "jsonexport" {
		t.Errorf("Name() = %q, want %q", got, "jsonexport")
	}

	needles, fields := exporter.Rules()
	if needles != 3 {
		t.Errorf("Rules() needles = %d, want 3", needles)
	}
	if fields != 2 {
		t.Errorf("Rules() fields = %d, want 2", fields)
	}
}

func TestNewJSONExporter_InvalidConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	exporter, err := NewJSONExporter([]any{
		[]any{"/x", "text", "keep"},
	}, logger)
	if err == nil {
		t.Fatal("NewJSONExporter() expected error for unknown action")
	}
	if exporter != nil {
		t.Errorf("NewJSONExporter() = %v, want nil on error", exporter)
	}

	var ruleErr *apperrors.RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("error = %v, want *RuleError", err)
	}
	if ruleErr.Field != "action" {
		t.Errorf("RuleError.Field = %q, want %q", ruleErr.Field, "action")
	}
}

func TestJSONExporter_ProcessText(t *testing.T) {
	exporter := mustExporter(t, []any{"/greeting"})

	msg := message.New("m-1", []byte(`{"greeting":"hi"}`))
	ok, err := exporter.Process(msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !ok {
		t.Fatal("Process() = false, want true")
	}

	want := []byte{
		0x00, 0x01,
		0x00, 0x00, 0x00, 0x02, 'h', 'i',
	}
	if !bytes.Equal(msg.Payload, want) {
		t.Errorf("payload = % x, want % x", msg.Payload, want)
	}
}

func TestJSONExporter_ProcessNullAndMissing(t *testing.T) {
	exporter := mustExporter(t, []any{"/a", "/missing", "/b"})

	msg := message.New("m-1", []byte(`{"a":"x","b":null}`))
	ok, err := exporter.Process(msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !ok {
		t.Fatal("Process() = false, want true")
	}

	// both the unresolved pointer and the JSON null become null fields
	want := []byte{
		0x00, 0x03,
		0x00, 0x00, 0x00, 0x01, 'x',
		0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	if !bytes.Equal(msg.Payload, want) {
		t.Errorf("payload = % x, want % x", msg.Payload, want)
	}
}

func TestJSONExporter_ProcessTimestamp(t *testing.T) {
	exporter := mustExporter(t, []any{[]any{"/ts", "timestamp"}})

	tests := []struct {
		name      string
		payload   string
		wantEpoch uint64
	}{
		{
			name:      "with fraction",
			payload:   `{"ts":"2019-11-05T11:31:34.123456Z"}`,
			wantEpoch: 626268694123456,
		},
		{
			name:      "without fraction",
			payload:   `{"ts":"2000-01-01T00:00:01Z"}`,
			wantEpoch: 1000000,
		},
		{
			name:      "minimum length epoch",
			payload:   `{"ts":"2000-01-01T00:00:00Z"}`,
			wantEpoch: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := message.New("m-1", []byte(tt.payload))
			ok, err := exporter.Process(msg)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if !ok {
				t.Fatal("Process() = false, want true")
			}

			want := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x08}
			want = binary.BigEndian.AppendUint64(want, tt.wantEpoch)
			if !bytes.Equal(msg.Payload, want) {
				t.Errorf("payload = % x, want % x", msg.Payload, want)
			}
		})
	}
}

func TestJSONExporter_ProcessWholeDocument(t *testing.T) {
	exporter := mustExporter(t, []any{""})

	msg := message.New("m-1", []byte(`{"a": 1, "b": "two"}`))
	ok, err := exporter.Process(msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !ok {
		t.Fatal("Process() = false, want true")
	}

	doc := `{"a":1,"b":"two"}`
	want := []byte{0x00, 0x01, 0x00, 0x00, 0x00, byte(len(doc))}
	want = append(want, doc...)
	if !bytes.Equal(msg.Payload, want) {
		t.Errorf("payload = %q, want %q", msg.Payload, want)
	}
}

func TestJSONExporter_ProcessEmptyConfig(t *testing.T) {
	exporter := mustExporter(t, []any{})

	msg := message.New("m-1", []byte(`{"anything":"goes"}`))
	ok, err := exporter.Process(msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !ok {
		t.Fatal("Process() = false, want true")
	}

	want := []byte{0x00, 0x00}
	if !bytes.Equal(msg.Payload, want) {
		t.Errorf("payload = % x, want % x", msg.Payload, want)
	}
}

func TestJSONExporter_Filtering(t *testing.T) {
	tests := []struct {
		name    string
		rules   []any
		payload string
		wantOK  bool
	}{
		{
			name:    "match discard_false passes on equal value",
			rules:   []any{[]any{"/env", "text", "discard_false", "match", "prod"}},
			payload: `{"env":"prod"}`,
			wantOK:  true,
		},
		{
			name:    "match discard_false drops on different value",
			rules:   []any{[]any{"/env", "text", "discard_false", "match", "prod"}},
			payload: `{"env":"staging"}`,
			wantOK:  false,
		},
		{
			name:    "match compares full value not substring",
			rules:   []any{[]any{"/env", "text", "discard_false", "match", "prod"}},
			payload: `{"env":"preprod"}`,
			wantOK:  false,
		},
		{
			name:    "match drops on missing value",
			rules:   []any{[]any{"/env", "text", "discard_false", "match", "prod"}},
			payload: `{"other":"prod"}`,
			wantOK:  false,
		},
		{
			name:    "match drops on null value",
			rules:   []any{[]any{"/env", "text", "discard_false", "match", "prod"}},
			payload: `{"env":null}`,
			wantOK:  false,
		},
		{
			name:    "substr discard_false passes on contained literal",
			rules:   []any{[]any{"/msg", "text", "discard_false", "substr", "error"}},
			payload: `{"msg":"disk error on sda"}`,
			wantOK:  true,
		},
		{
			name:    "substr discard_false drops when literal absent",
			rules:   []any{[]any{"/msg", "text", "discard_false", "substr", "error"}},
			payload: `{"msg":"all good"}`,
			wantOK:  false,
		},
		{
			name:    "exists discard_false passes on present value",
			rules:   []any{[]any{"/id", "text", "discard_false", "exists"}},
			payload: `{"id":"x"}`,
			wantOK:  true,
		},
		{
			name:    "exists discard_false drops on missing value",
			rules:   []any{[]any{"/id", "text", "discard_false", "exists"}},
			payload: `{"other":"x"}`,
			wantOK:  false,
		},
		{
			name:    "exists sees an explicit null as resolved",
			rules:   []any{[]any{"/id", "text", "discard_false", "exists"}},
			payload: `{"id":null}`,
			wantOK:  true,
		},
		{
			name:    "discard_true drops when filter passes",
			rules:   []any{[]any{"/tombstone", "text", "discard_true", "exists"}},
			payload: `{"tombstone":true}`,
			wantOK:  false,
		},
		{
			name:    "discard_true passes when filter fails",
			rules:   []any{[]any{"/tombstone", "text", "discard_true", "exists"}},
			payload: `{"id":"x"}`,
			wantOK:  true,
		},
		{
			name:    "store_true drops the message when the filter fails",
			rules:   []any{[]any{"/env", "text", "store_true", "match", "prod"}},
			payload: `{"env":"staging"}`,
			wantOK:  false,
		},
		{
			name:    "store ignores its filter verdict",
			rules:   []any{[]any{"/env", "text", "store", "match", "prod"}},
			payload: `{"env":"staging"}`,
			wantOK:  true,
		},
		{
			name:    "later needle can still drop the message",
			rules:   []any{"/id", []any{"/env", "text", "discard_false", "match", "prod"}},
			payload: `{"id":"x","env":"staging"}`,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := mustExporter(t, tt.rules)

			msg := message.New("m-1", []byte(tt.payload))
			ok, err := exporter.Process(msg)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Errorf("Process() = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

// store_true and discard_false drop the message on exactly the same
// filter verdicts and differ only in frame layout when they pass.
func TestJSONExporter_StoreTrueMirrorsDiscardFalse(t *testing.T) {
	storeTrue := mustExporter(t, []any{[]any{"/env", "text", "store_true", "match", "prod"}})
	discardFalse := mustExporter(t, []any{[]any{"/env", "text", "discard_false", "match", "prod"}})

	for _, payload := range []string{`{"env":"prod"}`, `{"env":"staging"}`, `{"other":1}`} {
		gotStore, err := storeTrue.Process(message.New("m-1", []byte(payload)))
		if err != nil {
			t.Fatalf("store_true Process(%s) error = %v", payload, err)
		}
		gotDiscard, err := discardFalse.Process(message.New("m-2", []byte(payload)))
		if err != nil {
			t.Fatalf("discard_false Process(%s) error = %v", payload, err)
		}
		if gotStore != gotDiscard {
			t.Errorf("payload %s: store_true = %v, discard_false = %v, want identical verdicts",
				payload, gotStore, gotDiscard)
		}
	}

	passing := message.New("m-1", []byte(`{"env":"prod"}`))
	if _, err := storeTrue.Process(passing); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	wantStored := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x04, 'p', 'r', 'o', 'd'}
	if !bytes.Equal(passing.Payload, wantStored) {
		t.Errorf("store_true payload = % x, want % x", passing.Payload, wantStored)
	}

	passing = message.New("m-2", []byte(`{"env":"prod"}`))
	if _, err := discardFalse.Process(passing); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	wantEmpty := []byte{0x00, 0x00}
	if !bytes.Equal(passing.Payload, wantEmpty) {
		t.Errorf("discard_false payload = % x, want % x", passing.Payload, wantEmpty)
	}
}

func TestJSONExporter_Metadata(t *testing.T) {
	tests := []struct {
		name     string
		rules    []any
		payload  string
		wantMeta string
		wantLen  int
	}{
		{
			name:     "store_meta publishes decoded string",
			rules:    []any{[]any{"/user", "text", "store_meta"}},
			payload:  `{"user":"ada"}`,
			wantMeta: "ada",
			wantLen:  1,
		},
		{
			name:     "last store_meta needle wins",
			rules:    []any{[]any{"/user", "text", "store_meta"}, []any{"/city", "text", "store_meta"}},
			payload:  `{"user":"ada","city":"paris"}`,
			wantMeta: "paris",
			wantLen:  1,
		},
		{
			name:     "missing value publishes nothing",
			rules:    []any{[]any{"/user", "text", "store_meta"}, []any{"/missing", "text", "store_meta"}},
			payload:  `{"user":"ada"}`,
			wantMeta: "ada",
			wantLen:  1,
		},
		{
			name:     "null value publishes nothing",
			rules:    []any{[]any{"/user", "text", "store_meta"}, []any{"/gone", "text", "store_meta"}},
			payload:  `{"user":"ada","gone":null}`,
			wantMeta: "ada",
			wantLen:  1,
		},
		{
			name:     "numbers keep their literal form",
			rules:    []any{[]any{"/amount", "text", "store_meta"}},
			payload:  `{"amount":1.50}`,
			wantMeta: "1.50",
			wantLen:  1,
		},
		{
			name:     "objects publish compact form",
			rules:    []any{[]any{"/order", "text", "store_meta"}},
			payload:  `{"order": {"id": 7, "sku": "a-1"}}`,
			wantMeta: `{"id":7,"sku":"a-1"}`,
			wantLen:  1,
		},
		{
			name:     "timestamp store_meta publishes the raw string",
			rules:    []any{[]any{"/ts", "timestamp", "store_meta"}},
			payload:  `{"ts":"2000-01-01T00:00:00Z"}`,
			wantMeta: "2000-01-01T00:00:00Z",
			wantLen:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := mustExporter(t, tt.rules)

			msg := message.New("m-1", []byte(tt.payload))
			ok, err := exporter.Process(msg)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if !ok {
				t.Fatal("Process() = false, want true")
			}

			if got := msg.Meta.Len(); got != tt.wantLen {
				t.Fatalf("Meta.Len() = %d, want %d", got, tt.wantLen)
			}
			datum, found := msg.Meta.Get(MetadataKey)
			if !found {
				t.Fatalf("Meta.Get(%q) not found", MetadataKey)
			}
			if got := datum.String(); got != tt.wantMeta {
				t.Errorf("metadata = %q, want %q", got, tt.wantMeta)
			}
		})
	}
}

func TestJSONExporter_NoMetadataWithoutStoreMeta(t *testing.T) {
	exporter := mustExporter(t, []any{"/user"})

	msg := message.New("m-1", []byte(`{"user":"ada"}`))
	if _, err := exporter.Process(msg); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := msg.Meta.Len(); got != 0 {
		t.Errorf("Meta.Len() = %d, want 0", got)
	}
}

func TestJSONExporter_ParseError(t *testing.T) {
	exporter := mustExporter(t, []any{"/a"})

	original := []byte(`{"a": oops`)
	msg := message.New("m-1", original)
	ok, err := exporter.Process(msg)
	if ok {
		t.Fatal("Process() = true, want false")
	}
	if err == nil {
		t.Fatal("Process() expected error for malformed payload")
	}

	var hookErr *apperrors.HookError
	if !errors.As(err, &hookErr) {
		t.Fatalf("error = %v, want *HookError", err)
	}
	if hookErr.Hook != "jsonexport" {
		t.Errorf("HookError.Hook = %q, want %q", hookErr.Hook, "jsonexport")
	}
	if hookErr.MessageID != "m-1" {
		t.Errorf("HookError.MessageID = %q, want %q", hookErr.MessageID, "m-1")
	}
	if !bytes.Equal(msg.Payload, original) {
		t.Errorf("payload modified on error: %q", msg.Payload)
	}
}

func TestJSONExporter_TimestampFormatError(t *testing.T) {
	exporter := mustExporter(t, []any{"/id", []any{"/ts", "timestamp"}})

	original := []byte(`{"id":"x","ts":"yesterday"}`)
	msg := message.New("m-1", original)
	ok, err := exporter.Process(msg)
	if ok {
		t.Fatal("Process() = true, want false")
	}

	var hookErr *apperrors.HookError
	if !errors.As(err, &hookErr) {
		t.Fatalf("error = %v, want *HookError", err)
	}
	if hookErr.Pointer != "/ts" {
		t.Errorf("HookError.Pointer = %q, want %q", hookErr.Pointer, "/ts")
	}
	if !bytes.Equal(msg.Payload, original) {
		t.Errorf("payload modified on error: %q", msg.Payload)
	}
}

func TestJSONExporter_DiscardLeavesMessageIntact(t *testing.T) {
	exporter := mustExporter(t, []any{
		[]any{"/user", "text", "store_meta"},
		[]any{"/env", "text", "discard_false", "match", "prod"},
	})

	original := []byte(`{"user":"ada","env":"staging"}`)
	msg := message.New("m-1", original)
	ok, err := exporter.Process(msg)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if ok {
		t.Fatal("Process() = true, want false")
	}

	if !bytes.Equal(msg.Payload, original) {
		t.Errorf("payload modified on discard: %q", msg.Payload)
	}
	if got := msg.Meta.Len(); got != 0 {
		t.Errorf("Meta.Len() = %d after discard, want 0", got)
	}
}

func TestJSONExporter_Closed(t *testing.T) {
	exporter := mustExporter(t, []any{"/a"})

	if err := exporter.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	ok, err := exporter.Process(message.New("m-1", []byte(`{"a":"x"}`)))
	if ok {
		t.Fatal("Process() = true after Close, want false")
	}
	if !errors.Is(err, apperrors.ErrHookClosed) {
		t.Errorf("Process() error = %v, want ErrHookClosed", err)
	}
}

func TestJSONExporter_ConcurrentProcess(t *testing.T) {
	exporter := mustExporter(t, []any{
		"/id",
		[]any{"/ts", "timestamp"},
		[]any{"/user", "text", "store_meta"},
		[]any{"/env", "text", "discard_false", "match", "prod"},
	})

	payload := []byte(`{"id":"m","ts":"2019-11-05T11:31:34.123456Z","user":"ada","env":"prod"}`)

	reference := message.New("ref", payload)
	if ok, err := exporter.Process(reference); err != nil || !ok {
		t.Fatalf("Process() = %v, %v, want true, nil", ok, err)
	}

	const workers = 8
	const iterations = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				msg := message.New(fmt.Sprintf("w%d-%d", w, i), payload)
				ok, err := exporter.Process(msg)
				if err != nil {
					t.Errorf("worker %d: Process() error = %v", w, err)
					return
				}
				if !ok {
					t.Errorf("worker %d: Process() = false, want true", w)
					return
				}
				if !bytes.Equal(msg.Payload, reference.Payload) {
					t.Errorf("worker %d: frame = % x, want % x", w, msg.Payload, reference.Payload)
					return
				}
				datum, found := msg.Meta.Get(MetadataKey)
				if !found || datum.String() != "ada" {
					t.Errorf("worker %d: metadata = %v, want ada", w, datum)
					return
				}
			}
		}(w)
	}
	wg.Wait()
}

func mustExporter(t *testing.T, rules []any) *JSONExporter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	exporter, err := NewJSONExporter(rules, logger)
	if err != nil {
		t.Fatalf("NewJSONExporter() error = %v", err)
	}
	return exporter
}

func BenchmarkJSONExporter_Process(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	exporter, err := NewJSONExporter([]any{
		"/id",
		[]any{"/ts", "timestamp"},
		[]any{"/env", "text", "discard_false", "match", "prod"},
	}, logger)
	if err != nil {
		b.Fatalf("NewJSONExporter() error = %v", err)
	}

	payload := []byte(`{"id":"order-1234","ts":"2019-11-05T11:31:34.123456Z","env":"prod"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg := &message.Message{ID: "bench", Payload: payload}
		if _, err := exporter.Process(msg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJSONExporter_ProcessParallel(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	exporter, err := NewJSONExporter([]any{
		"/id",
		[]any{"/ts", "timestamp"},
	}, logger)
	if err != nil {
		b.Fatalf("NewJSONExporter() error = %v", err)
	}

	payload := []byte(`{"id":"order-1234","ts":"2019-11-05T11:31:34.123456Z"}`)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			msg := &message.Message{ID: "bench", Payload: payload}
			if _, err := exporter.Process(msg); err != nil {
				b.Fatal(err)
			}
		}
	})
}
