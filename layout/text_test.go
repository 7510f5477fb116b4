package layout

import (
	"errors"
	"math"
	"testing"
)

// stubFace 用等宽字符估算包围盒：宽 = 字符数 × advance，高固定。
type stubFace struct {
	advance float64
	height  float64
}

func (f *stubFace) Box(text string) Box {
	return Box{Width: float64(len([]rune(text))) * f.advance, Height: f.height}
}

type drawCall struct {
	text   string
	face   Face
	origin Point
}

type recordingCanvas struct {
	calls []drawCall
	err   error
}

func (c *recordingCanvas) DrawText(text string, face Face, origin Point) error {
	if c.err != nil {
		return c.err
	}
	c.calls = append(c.calls, drawCall{text: text, face: face, origin: origin})
	return nil
}

func TestDrawTextSingleFontTooWide(t *testing.T) {
	canvas := &recordingCanvas{}
	big := &stubFace{advance: 10, height: 20}

	// 宽 100 > 2 × anchor.X (80)
	_, err := DrawText(canvas, "0123456789", []Face{big}, Point{X: 40, Y: 50})
	var perr *TextPlacementError
	if !errors.As(err, &perr) {
		t.Fatalf("expected TextPlacementError, got %v", err)
	}
	if perr.Line != "0123456789" {
		t.Fatalf("error should name the line, got %q", perr.Line)
	}
	if len(canvas.calls) != 0 {
		t.Fatalf("nothing should be drawn, got %d calls", len(canvas.calls))
	}
}

func TestDrawTextFallsBackToNarrowerFont(t *testing.T) {
	canvas := &recordingCanvas{}
	big := &stubFace{advance: 10, height: 20}
	small := &stubFace{advance: 5, height: 10}

	placements, err := DrawText(canvas, "0123456789", []Face{big, small}, Point{X: 40, Y: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(canvas.calls) != 1 || canvas.calls[0].face != small {
		t.Fatalf("expected one draw with the fallback face, got %+v", canvas.calls)
	}
	if placements[0].FaceIndex != 1 {
		t.Fatalf("expected face index 1, got %d", placements[0].FaceIndex)
	}
	want := Point{X: 40 - 25, Y: 50 - 5}
	if canvas.calls[0].origin != want {
		t.Fatalf("origin mismatch: got=%+v want=%+v", canvas.calls[0].origin, want)
	}
}

func TestDrawTextRejectsZeroLeftEdge(t *testing.T) {
	canvas := &recordingCanvas{}
	face := &stubFace{advance: 10, height: 10}

	// 左边缘恰好为 0 也不接受
	_, err := DrawText(canvas, "abcd", []Face{face}, Point{X: 20, Y: 20})
	var perr *TextPlacementError
	if !errors.As(err, &perr) {
		t.Fatalf("expected TextPlacementError, got %v", err)
	}
}

func TestDrawTextMultiLineCentersBlock(t *testing.T) {
	canvas := &recordingCanvas{}
	face := &stubFace{advance: 4, height: 12}
	anchor := Point{X: 100, Y: 60}

	placements, err := DrawText(canvas, "first\nsecond\n\nthird", []Face{face}, anchor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(placements) != 3 {
		t.Fatalf("empty lines must be dropped, got %d placements", len(placements))
	}

	total := 3 * 12.0
	const eps = 1e-6
	if diff := math.Abs(placements[0].Origin.Y - (anchor.Y - total/2)); diff > eps {
		t.Fatalf("first line top should be anchor.Y - total/2: got=%g want=%g", placements[0].Origin.Y, anchor.Y-total/2)
	}
	for i := 1; i < len(placements); i++ {
		if diff := math.Abs(placements[i].Origin.Y - placements[i-1].Origin.Y - 12); diff > eps {
			t.Fatalf("line %d should advance by the line height, got %g", i, placements[i].Origin.Y-placements[i-1].Origin.Y)
		}
	}
	for _, p := range placements {
		if diff := math.Abs(p.Origin.X + p.Box.Width/2 - anchor.X); diff > eps {
			t.Fatalf("line %q not horizontally centred: origin=%+v box=%+v", p.Line, p.Origin, p.Box)
		}
	}
}

func TestDrawTextFallbackPersistsAcrossLinesAndResetsPerCall(t *testing.T) {
	big := &stubFace{advance: 10, height: 20}
	small := &stubFace{advance: 2, height: 8}
	faces := []Face{big, small}
	anchor := Point{X: 50, Y: 50}

	canvas := &recordingCanvas{}
	// 第一行需要回退，第二行本可以用大字体，但游标不回退
	placements, err := DrawText(canvas, "a very long line\nok", faces, anchor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if placements[0].FaceIndex != 1 || placements[1].FaceIndex != 1 {
		t.Fatalf("fallback should persist within one text, got %+v", placements)
	}

	canvas = &recordingCanvas{}
	placements, err = DrawText(canvas, "ok", faces, anchor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if placements[0].FaceIndex != 0 {
		t.Fatalf("each call should start with the first face, got %d", placements[0].FaceIndex)
	}
}

func TestDrawTextEmptyAndNoFaces(t *testing.T) {
	canvas := &recordingCanvas{}
	placements, err := DrawText(canvas, "\n\n", nil, Point{X: 10, Y: 10})
	if err != nil || len(placements) != 0 {
		t.Fatalf("empty text should draw nothing, got %v %v", placements, err)
	}

	_, err = DrawText(canvas, "hello", nil, Point{X: 10, Y: 10})
	var perr *TextPlacementError
	if !errors.As(err, &perr) {
		t.Fatalf("expected TextPlacementError without faces, got %v", err)
	}
}

func TestDrawTextPropagatesCanvasError(t *testing.T) {
	boom := errors.New("boom")
	canvas := &recordingCanvas{err: boom}
	_, err := DrawText(canvas, "hi", []Face{&stubFace{advance: 1, height: 1}}, Point{X: 10, Y: 10})
	if !errors.Is(err, boom) {
		t.Fatalf("expected canvas error, got %v", err)
	}
}
