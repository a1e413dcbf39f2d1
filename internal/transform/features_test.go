package transform

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/rapidocr-go/internal/geometry"
)

// chainContext carries one scenario's state.
type chainContext struct {
	raw       image.Point
	rec       *Record
	processed *image.NRGBA
	mapped    geometry.Quad
}

func parseQuad(s string) (geometry.Quad, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return geometry.Quad{}, fmt.Errorf("quad %q needs 4 points", s)
	}
	var q geometry.Quad
	for i, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return geometry.Quad{}, fmt.Errorf("point %q is not x,y", f)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return geometry.Quad{}, err
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return geometry.Quad{}, err
		}
		q[i] = geometry.Pt(x, y)
	}
	return q, nil
}

func (c *chainContext) aRawImage(w, h int) error {
	c.raw = image.Pt(w, h)
	c.rec = NewRecord(c.raw)
	return nil
}

func (c *chainContext) scaledWith(ratioH, ratioW float64) error {
	c.rec.Append(Scale{RatioH: ratioH, RatioW: ratioW})
	return nil
}

func (c *chainContext) paddedBy(top, left int) error {
	c.rec.Append(Padding{Top: top, Left: left})
	return nil
}

func (c *chainContext) preprocessed() error {
	img := image.NewNRGBA(image.Rectangle{Max: c.raw})
	opts := DefaultOptions()
	resized, rec, err := Resize(img, opts)
	if err != nil {
		return err
	}
	c.processed = Letterbox(resized, opts, rec)
	c.rec = rec
	return nil
}

func (c *chainContext) processedSize(w, h int) error {
	if got := c.processed.Bounds().Size(); got != image.Pt(w, h) {
		return fmt.Errorf("processed image is %v, want %dx%d", got, w, h)
	}
	return nil
}

func (c *chainContext) recordHolds(n int) error {
	if got := len(c.rec.Entries()); got != n {
		return fmt.Errorf("record holds %d entries (%v), want %d", got, c.rec.Entries(), n)
	}
	return nil
}

func (c *chainContext) mappedBack(s string) error {
	q, err := parseQuad(s)
	if err != nil {
		return err
	}
	c.mapped = c.rec.Quad(q)
	return nil
}

func (c *chainContext) quadIs(s string) error {
	want, err := parseQuad(s)
	if err != nil {
		return err
	}
	for i := range want {
		if math.Abs(want[i].X-c.mapped[i].X) > 1e-9 || math.Abs(want[i].Y-c.mapped[i].Y) > 1e-9 {
			return fmt.Errorf("mapped quad is %v, want %v", c.mapped, want)
		}
	}
	return nil
}

func initializeScenario(sc *godog.ScenarioContext) {
	c := &chainContext{}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*c = chainContext{}
		return ctx, nil
	})

	sc.Step(`^a raw image of (\d+) by (\d+) pixels$`, c.aRawImage)
	sc.Step(`^the image was scaled with height ratio ([\d.]+) and width ratio ([\d.]+)$`, c.scaledWith)
	sc.Step(`^the image was padded by (\d+) on top and (\d+) on the left$`, c.paddedBy)
	sc.Step(`^the image is preprocessed with the default options$`, c.preprocessed)
	sc.Step(`^the processed image is (\d+) by (\d+) pixels$`, c.processedSize)
	sc.Step(`^the record holds (\d+) entries$`, c.recordHolds)
	sc.Step(`^the quad "([^"]*)" is mapped back$`, c.mappedBack)
	sc.Step(`^the quad is "([^"]*)"$`, c.quadIs)
}

func TestFeatures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("features", "*.feature"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("no feature files found: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "progress"
	}

	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   format,
			Paths:    paths,
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
