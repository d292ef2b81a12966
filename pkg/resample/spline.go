package resample

import "math"

// MaxOrder is the highest supported spline interpolation order.
const MaxOrder = 5

// poles returns the poles of the B-spline interpolation prefilter.
func poles(order int) []float64 {
	switch order {
	case 2:
		return []float64{math.Sqrt(8) - 3}
	case 3:
		return []float64{math.Sqrt(3) - 2}
	case 4:
		return []float64{
			math.Sqrt(664-math.Sqrt(438976)) + math.Sqrt(304) - 19,
			math.Sqrt(664+math.Sqrt(438976)) - math.Sqrt(304) - 19,
		}
	case 5:
		return []float64{
			math.Sqrt(135.0/2-math.Sqrt(17745.0/4)) + math.Sqrt(105.0/4) - 13.0/2,
			math.Sqrt(135.0/2+math.Sqrt(17745.0/4)) - math.Sqrt(105.0/4) - 13.0/2,
		}
	default:
		return nil
	}
}

// prefilterLine converts samples into B-spline coefficients in place,
// assuming mirror-symmetric boundaries.
func prefilterLine(c []float64, zs []float64) {
	n := len(c)
	if n < 2 || len(zs) == 0 {
		return
	}

	gain := 1.0
	for _, z := range zs {
		gain *= (1 - z) * (1 - 1/z)
	}
	for i := range c {
		c[i] *= gain
	}

	for _, z := range zs {
		c[0] = initialCausal(c, z)
		for k := 1; k < n; k++ {
			c[k] += z * c[k-1]
		}
		c[n-1] = (z / (z*z - 1)) * (z*c[n-2] + c[n-1])
		for k := n - 2; k >= 0; k-- {
			c[k] = z * (c[k+1] - c[k])
		}
	}
}

func initialCausal(c []float64, z float64) float64 {
	n := len(c)
	horizon := int(math.Ceil(math.Log(1e-15) / math.Log(math.Abs(z))))

	if horizon < n {
		zn := z
		sum := c[0]
		for k := 1; k < horizon; k++ {
			sum += zn * c[k]
			zn *= z
		}
		return sum
	}

	zn := z
	iz := 1 / z
	z2n := math.Pow(z, float64(n-1))
	sum := c[0] + z2n*c[n-1]
	z2n *= z2n * iz
	for k := 1; k <= n-2; k++ {
		sum += (zn + z2n) * c[k]
		zn *= z
		z2n *= iz
	}
	return sum / (1 - zn*zn)
}

// weights computes the first support index and the order+1 spline weights
// for evaluation at position x.
func weights(x float64, order int, w []float64) int {
	var start int
	if order%2 == 1 {
		start = int(math.Floor(x)) - order/2
	} else {
		start = int(math.Floor(x+0.5)) - order/2
	}

	switch order {
	case 0:
		w[0] = 1
	case 1:
		t := x - float64(start)
		w[0] = 1 - t
		w[1] = t
	case 2:
		t := x - float64(start+1)
		w[1] = 3.0/4 - t*t
		w[2] = 0.5 * (t - w[1] + 1)
		w[0] = 1 - w[1] - w[2]
	case 3:
		t := x - float64(start+1)
		w[3] = t * t * t / 6
		w[0] = 1.0/6 + 0.5*t*(t-1) - w[3]
		w[2] = t + w[0] - 2*w[3]
		w[1] = 1 - w[0] - w[2] - w[3]
	case 4:
		t := x - float64(start+2)
		t2 := t * t
		u := t2 / 6
		w[0] = 0.5 - t
		w[0] *= w[0]
		w[0] *= w[0] / 24
		t0 := t * (u - 11.0/24)
		t1 := 19.0/96 + t2*(0.25-u)
		w[1] = t1 + t0
		w[3] = t1 - t0
		w[4] = w[0] + t0 + 0.5*t
		w[2] = 1 - w[0] - w[1] - w[3] - w[4]
	case 5:
		t := x - float64(start+2)
		t2 := t * t
		w[5] = t * t2 * t2 / 120
		t2 -= t
		t4 := t2 * t2
		t -= 0.5
		u := t2 * (t2 - 3)
		w[0] = (0.2+t2+t4)/24 - w[5]
		t0 := (t2*(t2-5) + 46.0/5) / 24
		t1 := -t * (u + 4) / 12
		w[2] = t0 + t1
		w[3] = t0 - t1
		t0 = (9.0/5 - u) / 16
		t1 = t * (t4 - t2 - 5) / 24
		w[1] = t0 + t1
		w[4] = t0 - t1
	}
	return start
}

// mirror folds an index into [0, n) with whole-sample symmetry.
func mirror(k, n int) int {
	if n == 1 {
		return 0
	}
	period := 2*n - 2
	if k < 0 {
		k = -k
	}
	k %= period
	if k >= n {
		k = period - k
	}
	return k
}
