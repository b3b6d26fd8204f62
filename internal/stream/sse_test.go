package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSSESink_HeadersAndFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := NewSSESink(rec)

	if err := sink.Send(Event{Type: TypeStart}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Send(Event{Type: TypeContent, Chunk: "안녕", ChunkID: 1}); err != nil {
		t.Fatal(err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("X-Accel-Buffering = %q", got)
	}

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2: %q", len(frames), body)
	}
	for _, frame := range frames {
		if !strings.HasPrefix(frame, "data: ") {
			t.Errorf("frame missing data prefix: %q", frame)
		}
	}
	if !strings.Contains(frames[0], `"type":"start"`) {
		t.Errorf("start frame payload: %q", frames[0])
	}
	if !strings.Contains(frames[1], `"chunk_id":1`) {
		t.Errorf("content frame payload: %q", frames[1])
	}
	if !rec.Flushed {
		t.Error("sink did not flush")
	}
}

func TestSSESink_ZeroChunkDoneCarriesTotal(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := NewSSESink(rec)

	if err := sink.Send(Event{Type: TypeDone, TotalChunks: 0}); err != nil {
		t.Fatal(err)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"total_chunks":0`) {
		t.Errorf("done frame missing total_chunks: %q", body)
	}
}
