package sed

import "math"

// residualFunc fills out with the m weighted residuals at parameters p and
// reports whether every residual is finite.
type residualFunc func(p, out []float64) bool

// levenbergMarquardt minimizes the sum of squared residuals over n
// parameters starting from x0. The Jacobian is built by forward differences.
// It returns the solution and whether the iteration converged to finite
// parameters within maxIter.
func levenbergMarquardt(f residualFunc, m, n int, x0 []float64, tolerance float64, maxIter int) ([]float64, bool) {
	x := make([]float64, n)
	copy(x, x0)

	fi := make([]float64, m)
	if !f(x, fi) {
		return nil, false
	}
	cost := sumOfSquares(fi)

	jac := make([][]float64, m)
	for i := range jac {
		jac[i] = make([]float64, n)
	}

	jtj := make([][]float64, n)
	a := make([][]float64, n)
	for i := 0; i < n; i++ {
		jtj[i] = make([]float64, n)
		a[i] = make([]float64, n)
	}
	jtf := make([]float64, n)
	rhs := make([]float64, n)
	dx := make([]float64, n)
	xNew := make([]float64, n)
	fiNew := make([]float64, m)
	fiStep := make([]float64, m)

	lambda := 1e-3
	const nu = 2.0
	converged := false

	for iter := 0; iter < maxIter; iter++ {
		// Forward-difference Jacobian.
		for j := 0; j < n; j++ {
			h := 1e-6 * math.Abs(x[j])
			if h < 1e-9 {
				h = 1e-9
			}
			orig := x[j]
			x[j] = orig + h
			ok := f(x, fiStep)
			x[j] = orig
			if !ok {
				// Step into an invalid region; try the other side.
				x[j] = orig - h
				ok = f(x, fiStep)
				x[j] = orig
				if !ok {
					return nil, false
				}
				h = -h
			}
			for k := 0; k < m; k++ {
				jac[k][j] = (fiStep[k] - fi[k]) / h
			}
		}

		// Normal equations: (JtJ + lambda*diag) dx = -Jtf.
		for i := 0; i < n; i++ {
			jtf[i] = 0
			for j := 0; j < n; j++ {
				jtj[i][j] = 0
			}
		}
		for k := 0; k < m; k++ {
			for i := 0; i < n; i++ {
				ji := jac[k][i]
				jtf[i] += ji * fi[k]
				for j := i; j < n; j++ {
					jtj[i][j] += ji * jac[k][j]
				}
			}
		}
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				jtj[i][j] = jtj[j][i]
			}
		}

		gradNorm := 0.0
		for i := 0; i < n; i++ {
			gradNorm += jtf[i] * jtf[i]
		}
		if math.Sqrt(gradNorm) < tolerance*(1+cost) {
			converged = true
			break
		}

		improved := false
		for tries := 0; tries < 20; tries++ {
			for i := 0; i < n; i++ {
				copy(a[i], jtj[i])
				a[i][i] += lambda * math.Max(jtj[i][i], 1e-12)
				rhs[i] = -jtf[i]
			}
			if !solveLinear(a, rhs, dx, n) {
				lambda *= nu
				continue
			}

			for i := 0; i < n; i++ {
				xNew[i] = x[i] + dx[i]
			}
			if !f(xNew, fiNew) {
				lambda *= nu
				continue
			}
			newCost := sumOfSquares(fiNew)
			if newCost < cost {
				copy(x, xNew)
				copy(fi, fiNew)
				if math.Abs(cost-newCost) < tolerance*(1+cost) {
					converged = true
				}
				cost = newCost
				lambda = math.Max(lambda/nu, 1e-12)
				improved = true
				break
			}
			lambda *= nu
		}

		if converged {
			break
		}
		if !improved {
			// Damping exhausted without progress; accept the current
			// point as converged if the gradient is already small.
			converged = math.Sqrt(gradNorm) < math.Sqrt(tolerance)*(1+cost)
			break
		}
	}

	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
			return nil, false
		}
	}
	return x, converged
}

func sumOfSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

// solveLinear solves a*x = b by Gaussian elimination with partial pivoting.
// a and b are modified in place.
func solveLinear(a [][]float64, b, x []float64, n int) bool {
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-14 {
			return false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return true
}
