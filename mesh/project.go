package mesh

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// OrthoProj computes the orthogonal projection of x0 onto the affine subspace
// defined by Ax=b which is the intersection of affine hyperplanes that
// constitute the rows of A with associated shifts in b.  The equation is:
//
//	proj = [I - A^T * (A * A^T)^-1 * A]*x0 + A^T * (A * A^T)^-1 * b
//
// where x0 is the point being projected and I is the identity matrix.  A is
// an m by n matrix where m <= n. if m == n, the returned result is the
// solution to the system A*x0=b
func OrthoProj(x0 []float64, A, b *mat.Dense) ([]float64, error) {
	x := mat.NewDense(len(x0), 1, append([]float64{}, x0...))

	m, n := A.Dims()
	if m == n {
		var proj mat.Dense
		if err := proj.Solve(A, b); err != nil {
			return nil, err
		}
		return mat.Col(nil, 0, &proj), nil
	}

	var AAtrans mat.Dense
	AAtrans.Mul(A, A.T())

	// B = A^T * (A*A^T)^-1
	var inv mat.Dense
	if err := inv.Inverse(&AAtrans); err != nil {
		return nil, err
	}
	var B mat.Dense
	B.Mul(A.T(), &inv)

	var tmp mat.Dense
	tmp.Mul(&B, A)
	tmp.Sub(eye(n), &tmp)

	var proj mat.Dense
	proj.Mul(&tmp, x)

	var shift mat.Dense
	shift.Mul(&B, b)
	proj.Add(&proj, &shift)

	return mat.Col(nil, 0, &proj), nil
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// ErrNoProjection is returned by Nearest when the active set search does not
// settle: the feasible region is empty, or the search runs into a full
// active set that still leaves a constraint violated.
var ErrNoProjection = errors.New("mesh: active set search did not converge")

// Nearest returns the point nearest to x0 that doesn't violate constraints in
// the equation Ax <= b.  It keeps an active set of constraints treated as
// equalities and projects x0 onto their intersection: the most violated
// constraint (distance to its hyperplane) is added, and any active
// constraint with a negative multiplier is dropped again, until the
// projection is feasible with all multipliers nonnegative.  Those are the
// optimality conditions of the projection, so the result is the exact
// nearest point.
func Nearest(x0 []float64, A, b *mat.Dense) ([]float64, error) {
	const tol = 1e-10

	m, ncols := A.Dims()
	norms := make([]float64, m)
	for i := range norms {
		norms[i] = floats.Norm(mat.Row(nil, i, A), 2)
	}

	proj := append([]float64{}, x0...)
	var active []int
	for iter := 0; iter < 10*(m+ncols); iter++ {
		if len(active) > 0 {
			Aw, bw := rows(A, b, active)
			lambda, err := multipliers(x0, Aw, bw)
			if err != nil {
				return nil, err
			}
			if i := floats.MinIdx(lambda); lambda[i] < -tol {
				active = append(active[:i], active[i+1:]...)
				continue
			}
			if proj, err = OrthoProj(x0, Aw, bw); err != nil {
				return nil, err
			}
		} else {
			proj = append(proj[:0], x0...)
		}

		worst := mostviolated(proj, A, b, norms)
		if worst < 0 { // projection is complete
			return proj, nil
		}
		if len(active) >= ncols {
			return nil, ErrNoProjection
		}
		active = append(active, worst)
	}
	return nil, ErrNoProjection
}

// rows returns the rows idx of A and b.
func rows(A, b *mat.Dense, idx []int) (Aw, bw *mat.Dense) {
	_, n := A.Dims()
	Aw = mat.NewDense(len(idx), n, nil)
	bw = mat.NewDense(len(idx), 1, nil)
	for k, i := range idx {
		Aw.SetRow(k, mat.Row(nil, i, A))
		bw.Set(k, 0, b.At(i, 0))
	}
	return Aw, bw
}

// multipliers solves (A*A^T) lambda = A*x0 - b for the multipliers of the
// projection of x0 onto Ax=b, i.e. proj = x0 - A^T*lambda.
func multipliers(x0 []float64, A, b *mat.Dense) ([]float64, error) {
	var AAtrans mat.Dense
	AAtrans.Mul(A, A.T())

	var rhs mat.Dense
	rhs.Mul(A, mat.NewDense(len(x0), 1, append([]float64{}, x0...)))
	rhs.Sub(&rhs, b)

	var lambda mat.Dense
	if err := lambda.Solve(&AAtrans, &rhs); err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, &lambda), nil
}

// mostviolated returns the row of the constraint in Ax <= b that x0 is
// farthest outside of, or -1 if x0 violates no constraints.  Rows of zeros
// are skipped.
func mostviolated(x0 []float64, A, b *mat.Dense, norms []float64) int {
	const tol = 1e-10

	var ax mat.Dense
	ax.Mul(A, mat.NewDense(len(x0), 1, append([]float64{}, x0...)))

	m, _ := ax.Dims()
	worst := tol
	worstRow := -1
	for i := 0; i < m; i++ {
		if norms[i] == 0 {
			continue
		}
		if dist := (ax.At(i, 0) - b.At(i, 0)) / norms[i]; dist > worst {
			worst = dist
			worstRow = i
		}
	}
	return worstRow
}
