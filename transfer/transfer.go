// Package transfer moves field values across an overlay common
// refinement: direct interpolation, and a conservative least-squares
// fit solved by conjugate gradients. A third "load transfer" variant
// (see load.go) scales by relative face areas so that global integrals
// are preserved exactly.
package transfer

import (
	"math"

	"github.com/sarchlab/concom/errs"
	"github.com/sarchlab/concom/overlay"
)

// Topology pairs one pane's overlay.Mesh with the global node index
// backing each face vertex, so a field defined per global node (rather
// than per face-local vertex) can be evaluated at any point produced
// by the overlay. A transfer runs over one (blue pane, green pane)
// pair; callers with multi-pane surfaces partition the subface list by
// its pane ids and run one transfer per pair.
type Topology struct {
	Mesh overlay.Mesh
	// Faces[f][k] is the global node index of Mesh.Faces[f][k].
	Faces    [][]int
	NumNodes int
}

// FaceArea returns the planar area of face f.
func (t Topology) FaceArea(f int) float64 {
	return overlay.PolygonArea(t.Mesh.Faces[f])
}

// DefaultCGTolerance and DefaultCGIterations are the defaults for the
// conservative transfer's conjugate-gradient solve.
const (
	DefaultCGTolerance = 1e-6
	DefaultCGIterations = 100
)

// conjugateGradient solves the symmetric positive-(semi)definite system
// a*x = b. It defaults to tolerance 1e-6 and an iteration cap of 100,
// and reports errs.TransferDivergence if the residual has not
// converged within maxIter iterations.
func conjugateGradient(mul func(x []float64) []float64, b []float64, tol float64, maxIter int) ([]float64, error) {
	op := "transfer.conjugate_gradient"
	if tol <= 0 {
		tol = DefaultCGTolerance
	}
	if maxIter <= 0 {
		maxIter = DefaultCGIterations
	}

	n := len(b)
	x := make([]float64, n)
	r := make([]float64, n)
	copy(r, b)

	bNorm := norm(b)
	if bNorm == 0 {
		return x, nil
	}

	p := make([]float64, n)
	copy(p, r)
	rsOld := dotv(r, r)

	for iter := 0; iter < maxIter; iter++ {
		if norm(r)/bNorm <= tol {
			return x, nil
		}
		ap := mul(p)
		denom := dotv(p, ap)
		if denom == 0 {
			break
		}
		alpha := rsOld / denom
		for i := range x {
			x[i] += alpha * p[i]
			r[i] -= alpha * ap[i]
		}
		rsNew := dotv(r, r)
		if norm(r)/bNorm <= tol {
			return x, nil
		}
		beta := rsNew / rsOld
		for i := range p {
			p[i] = r[i] + beta*p[i]
		}
		rsOld = rsNew
	}

	if norm(r)/bNorm > tol {
		return nil, errs.New(errs.TransferDivergence, op, "conjugate gradient exceeded iteration cap without converging")
	}
	return x, nil
}

func dotv(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(a []float64) float64 {
	return math.Sqrt(dotv(a, a))
}
