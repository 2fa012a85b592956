package crew

import (
	"strings"
	"testing"
)

func TestSplitResult(t *testing.T) {
	in := "[{\"PLAYER_NAME\": \"John Stockton\"}]\n---\nStockton leads with 15,806 assists."
	sp := SplitResult(in)
	if !sp.OK {
		t.Fatal("marker not found")
	}
	if sp.Raw+ResultMarker+sp.Summary != in {
		t.Errorf("split does not reassemble: %+v", sp)
	}
	want := "Raw Data:\n[{\"PLAYER_NAME\": \"John Stockton\"}]\n\nHuman-Readable Summary:\nStockton leads with 15,806 assists."
	if got := sp.Format(); got != want {
		t.Errorf("Format =\n%s\nwant\n%s", got, want)
	}
}

func TestSplitResultFirstMarkerOnly(t *testing.T) {
	in := "raw\n---\nsummary part one\n---\npart two"
	sp := SplitResult(in)
	if sp.Raw != "raw\n" || sp.Summary != "\nsummary part one\n---\npart two" {
		t.Errorf("split = %+v", sp)
	}
	if sp.Raw+ResultMarker+sp.Summary != in {
		t.Error("split does not reassemble")
	}
}

func TestSplitResultNoMarker(t *testing.T) {
	in := "Just a summary with no raw data."
	sp := SplitResult(in)
	if sp.OK || sp.Raw != in {
		t.Errorf("split = %+v", sp)
	}
	if sp.Format() != in {
		t.Errorf("unlabelled output expected, got %q", sp.Format())
	}
}

func TestSplitResultLongDashLine(t *testing.T) {
	sp := SplitResult("raw\n----------\nsummary")
	got := sp.Format()
	if !strings.HasSuffix(got, "Human-Readable Summary:\nsummary") {
		t.Errorf("Format = %q", got)
	}
}

func TestDisplay(t *testing.T) {
	recap := "Lakers win\n---\nnot a split"
	if Display(GraphGameInfo, recap) != recap {
		t.Error("game recaps must not be split")
	}
	if !strings.HasPrefix(Display(GraphPlayerStats, "a---b"), "Raw Data:") {
		t.Error("leaders output must be split")
	}
}

func TestSplitResultKeepsLeadingBullet(t *testing.T) {
	out := Display(GraphPlayerStats, "[{\"RANK\":1}]\n---\n- Kareem leads with 38387 points.\n- LeBron is second.")
	want := "Human-Readable Summary:\n- Kareem leads with 38387 points.\n- LeBron is second."
	if !strings.HasSuffix(out, want) {
		t.Errorf("Display = %q", out)
	}

	sp := SplitResult("raw\n-----\n- item")
	if !strings.HasSuffix(sp.Format(), "Human-Readable Summary:\n- item") {
		t.Errorf("Format = %q", sp.Format())
	}
}
