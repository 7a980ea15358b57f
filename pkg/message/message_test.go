package message

import (
	"bytes"
	"testing"
	"time"
)

func TestPartitionID_String(t *testing.T) {
	tests := []struct {
		name      string
		partition PartitionID
		want      string
	}{
		{
			name:      "basic partition",
			partition: PartitionID{Topic: "test-topic", Partition: 0},
			want:      "test-topic-0",
		},
		{
			name:      "partition 1",
			partition: PartitionID{Topic: "events", Partition: 1},
			want:      "events-1",
		},
		{
			name:      "partition 10",
			partition: PartitionID{Topic: "my-topic", Partition: 10},
			want:      "my-topic-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.partition.String(); got != tt.want {
				t.Errorf("PartitionID.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessage_PartitionID(t *testing.T) {
	msg := New("msg-1", []byte(`{"a":1}`))
	msg.Kafka = KafkaMetadata{
		Topic:     "orders",
		Partition: 3,
		Offset:    77,
	}

	got := msg.PartitionID()
	want := PartitionID{Topic: "orders", Partition: 3}
	if got != want {
		t.Errorf("PartitionID() = %v, want %v", got, want)
	}
}

func TestMessage_SetPayload(t *testing.T) {
	msg := New("msg-2", []byte(`{"a":1}`))

	frame := []byte{0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF}
	msg.SetPayload(frame)

	if !bytes.Equal(msg.Payload, frame) {
		t.Errorf("Payload = %v, want %v", msg.Payload, frame)
	}
}

func TestNew(t *testing.T) {
	payload := []byte(`{"key":"value"}`)
	msg := New("msg-3", payload)

	if msg.ID != "msg-3" {
		t.Errorf("ID = %v, want msg-3", msg.ID)
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Errorf("Payload = %s, want %s", msg.Payload, payload)
	}
	if msg.Meta == nil {
		t.Error("Meta should not be nil")
	}
	if msg.ReceivedAt.IsZero() {
		t.Error("ReceivedAt should be set")
	}
}

func TestMetadata_InsertGet(t *testing.T) {
	m := NewMetadata()

	m.Insert("jpointer", StringDatum("widget-7"))

	d, ok := m.Get("jpointer")
	if !ok {
		t.Fatal("Get() returned ok=false, want true")
	}
	if d.Kind != DatumString {
		t.Errorf("Kind = %v, want DatumString", d.Kind)
	}
	if d.String() != "widget-7" {
		t.Errorf("String() = %v, want widget-7", d.String())
	}
}

func TestMetadata_InsertReplaces(t *testing.T) {
	m := NewMetadata()

	m.Insert("jpointer", StringDatum("first"))
	m.Insert("jpointer", StringDatum("second"))

	if m.Len() != 1 {
		t.Errorf("Len() = %v, want 1", m.Len())
	}
	d, _ := m.Get("jpointer")
	if d.String() != "second" {
		t.Errorf("String() = %v, want second", d.String())
	}
}

func TestMetadata_Keys(t *testing.T) {
	m := NewMetadata()
	m.Insert("zeta", StringDatum("z"))
	m.Insert("alpha", StringDatum("a"))
	m.Insert("mid", Int64Datum(5))

	got := m.Keys()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Keys() returned %d keys, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDatum_String(t *testing.T) {
	tests := []struct {
		name  string
		datum Datum
		want  string
	}{
		{
			name:  "string datum",
			datum: StringDatum("hello"),
			want:  "hello",
		},
		{
			name:  "empty string datum",
			datum: StringDatum(""),
			want:  "",
		},
		{
			name:  "int64 datum",
			datum: Int64Datum(42),
			want:  "42",
		},
		{
			name:  "negative int64 datum",
			datum: Int64Datum(-7),
			want:  "-7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.datum.String(); got != tt.want {
				t.Errorf("Datum.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBatchStats(t *testing.T) {
	stats := BatchStats{
		FrameCount:     10,
		SizeBytes:      1024,
		FirstWriteTime: time.Now(),
		LastWriteTime:  time.Now(),
	}

	if stats.FrameCount != 10 {
		t.Errorf("FrameCount = %v, want 10", stats.FrameCount)
	}
	if stats.SizeBytes != 1024 {
		t.Errorf("SizeBytes = %v, want 1024", stats.SizeBytes)
	}
}

func TestConsumedMessage(t *testing.T) {
	msg := New("consumed-1", []byte(`{"x":true}`))
	msg.Kafka = KafkaMetadata{
		Topic:     "consumed-topic",
		Partition: 5,
		Offset:    200,
	}

	committed := false
	commitFunc := func() error {
		committed = true
		return nil
	}

	consumed := ConsumedMessage{
		Message:    msg,
		CommitFunc: commitFunc,
	}

	if consumed.Message == nil {
		t.Error("ConsumedMessage Message should not be nil")
	}
	if consumed.Message.Kafka.Topic != "consumed-topic" {
		t.Errorf("ConsumedMessage Topic = %v, want consumed-topic", consumed.Message.Kafka.Topic)
	}
	if consumed.CommitFunc == nil {
		t.Error("ConsumedMessage CommitFunc should not be nil")
	}

	// Test commit function
	if err := consumed.CommitFunc(); err != nil {
		t.Errorf("CommitFunc returned error: %v", err)
	}
	if !committed {
		t.Error("CommitFunc should have been called")
	}
}

// Benchmark tests

func BenchmarkPartitionID_String(b *testing.B) {
	pid := PartitionID{Topic: "benchmark-topic-with-long-name", Partition: 42}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pid.String()
	}
}

func BenchmarkMetadata_Insert(b *testing.B) {
	m := NewMetadata()
	d := StringDatum("benchmark-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Insert("jpointer", d)
	}
}
