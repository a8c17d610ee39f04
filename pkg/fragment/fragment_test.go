package fragment

import (
	"reflect"
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	in := "<thoughtSignature>inner reasoning</thoughtSignature>Ola! <functionCall>{}</functionCall>Tudo bem?\nreferencia: doc-42\n"
	if got := Clean(in); got != "Ola! Tudo bem?" {
		t.Fatalf("clean: %q", got)
	}
}

func TestCleanLightRetry(t *testing.T) {
	// the full strip would empty this short text; the light pass keeps it
	if got := Clean("referencia: abc"); got != "abc" {
		t.Fatalf("light retry: %q", got)
	}
}

func TestSplitEverySecondBoundary(t *testing.T) {
	got := Split("Hello! How are you? Fine.")
	want := []string{"Hello! How are you?", "Fine."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("split: %v", got)
	}
}

func TestSplitNoBoundary(t *testing.T) {
	got := Split("sem pontuacao nenhuma")
	if len(got) != 1 || got[0] != "sem pontuacao nenhuma" {
		t.Fatalf("split: %v", got)
	}
}

func TestSplitEmojiStaysWithBoundary(t *testing.T) {
	got := Split("Oi! 😀 Tudo? Sim.")
	if len(got) != 2 {
		t.Fatalf("split: %v", got)
	}
	if !strings.Contains(got[0], "😀") {
		t.Fatalf("emoji run must stay attached to its boundary: %v", got)
	}
}

func TestRenderBase64Audio(t *testing.T) {
	frags := Render("base64: SGVsbG8=")
	if len(frags) != 1 || len(frags[0].Segments) != 1 {
		t.Fatalf("fragments: %+v", frags)
	}
	seg := frags[0].Segments[0]
	if seg.Type != "audio" || seg.Content != "data:audio/webm;base64,SGVsbG8=" {
		t.Fatalf("segment: %+v", seg)
	}
}

func TestRenderDriveLink(t *testing.T) {
	frags := Render("https://drive.google.com/file/d/ABC_12-3/view")
	if len(frags) != 1 || len(frags[0].Segments) != 1 {
		t.Fatalf("fragments: %+v", frags)
	}
	seg := frags[0].Segments[0]
	if seg.Type != "audio" || seg.Content != "https://drive.google.com/uc?export=download&id=ABC_12-3" {
		t.Fatalf("segment: %+v", seg)
	}
}

func TestSegmentsTaggedRegions(t *testing.T) {
	got := Segments("Veja <image>https://x.example/a.png</image> agora")
	want := []Segment{
		{Type: "text", Content: "Veja"},
		{Type: "image", Content: "https://x.example/a.png"},
		{Type: "text", Content: "agora"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("segments: %v", got)
	}
}

func TestSegmentsTemplateUnwrapped(t *testing.T) {
	got := Segments("<template_de_resposta>Oi, tudo bem</template_de_resposta>")
	want := []Segment{{Type: "text", Content: "Oi, tudo bem"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("segments: %v", got)
	}
}

func TestSegmentsBareMediaURL(t *testing.T) {
	got := Segments("olha https://x.example/v.mp4 que legal")
	want := []Segment{
		{Type: "text", Content: "olha"},
		{Type: "video", Content: "https://x.example/v.mp4"},
		{Type: "text", Content: "que legal"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("segments: %v", got)
	}
}

func TestRenderEmptyAfterClean(t *testing.T) {
	in := `<functionCall>{"name":"lookup_order","args":{"order_id":123456789}}</functionCall>`
	if frags := Render(in); frags != nil {
		t.Fatalf("expected nil for control-only text, got %+v", frags)
	}
}

func TestRenderPipeline(t *testing.T) {
	frags := Render("Primeira frase. Segunda frase! Resto")
	if len(frags) != 2 {
		t.Fatalf("fragments: %+v", frags)
	}
	if frags[0].Text != "Primeira frase. Segunda frase!" || frags[1].Text != "Resto" {
		t.Fatalf("texts: %q / %q", frags[0].Text, frags[1].Text)
	}
	for _, f := range frags {
		if len(f.Segments) == 0 {
			t.Fatalf("fragment without segments: %+v", f)
		}
	}
}
