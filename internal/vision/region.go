package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"roadwatch-go/internal/config"
)

var maskFill = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// polygonMask keeps only the pixels of src inside roi. The mask is rebuilt when the
// frame geometry changes.
type polygonMask struct {
	roi  config.Polygon
	mask gocv.Mat
	out  gocv.Mat
}

func newPolygonMask(roi config.Polygon) polygonMask {
	return polygonMask{roi: roi, mask: gocv.NewMat(), out: gocv.NewMat()}
}

func (p *polygonMask) apply(src gocv.Mat) gocv.Mat {
	if p.mask.Empty() || p.mask.Rows() != src.Rows() || p.mask.Cols() != src.Cols() || p.mask.Type() != src.Type() {
		p.mask.Close()
		p.mask = gocv.Zeros(src.Rows(), src.Cols(), src.Type())
		pts := gocv.NewPointsVectorFromPoints([][]image.Point{p.roi.Points(src.Rows())})
		gocv.FillPoly(&p.mask, pts, maskFill)
		pts.Close()
	}
	gocv.BitwiseAnd(src, p.mask, &p.out)
	return p.out
}

func (p *polygonMask) close() {
	p.mask.Close()
	p.out.Close()
}

// RegionFilter crops a foreground mask to the counting region, cleans it with erosion
// and dilation, and optionally marks the reference line.
type RegionFilter struct {
	region           polygonMask
	erodeKernel      gocv.Mat
	dilateKernel     gocv.Mat
	erodeIterations  int
	dilateIterations int
	lineY            int
	markLine         bool
	work             gocv.Mat
}

func NewRegionFilter(cfg *config.Config) *RegionFilter {
	return &RegionFilter{
		region:           newPolygonMask(cfg.CountROI),
		erodeKernel:      gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.ErodeKernel, cfg.ErodeKernel)),
		dilateKernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.DilateKernel, cfg.DilateKernel)),
		erodeIterations:  cfg.ErodeIterations,
		dilateIterations: cfg.DilateIterations,
		lineY:            cfg.CrossingLineY,
		markLine:         cfg.MarkReferenceLine,
		work:             gocv.NewMat(),
	}
}

func (r *RegionFilter) Filter(fg gocv.Mat) (gocv.Mat, error) {
	cropped := r.region.apply(fg)
	cropped.CopyTo(&r.work)

	for i := 0; i < r.erodeIterations; i++ {
		gocv.Erode(r.work, &r.work, r.erodeKernel)
	}
	for i := 0; i < r.dilateIterations; i++ {
		gocv.Dilate(r.work, &r.work, r.dilateKernel)
	}

	if r.markLine {
		// value 200 on a single channel mask
		gocv.Line(&r.work, image.Pt(0, r.lineY), image.Pt(r.work.Cols(), r.lineY), color.RGBA{B: 200}, 1)
	}
	return r.work, nil
}

func (r *RegionFilter) Close() error {
	r.region.close()
	r.erodeKernel.Close()
	r.dilateKernel.Close()
	return r.work.Close()
}
