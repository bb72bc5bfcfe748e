package tsl2561

// Fixed point lux approximation for the chipscale (CS) package, from the TSL2561 datasheet.
const (
	luxScale   = 14     // scale by 2^14
	ratioScale = 9      // scale ratio by 2^9
	chScale    = 10     // scale channel values by 2^10
	chScaleT0  = 0x7517 // 322/11 * 2^chScale, 13.7ms integration
)

// breakpoints for the ch1/ch0 ratio with their b and m coefficients
var csCoefficients = []struct {
	k, b, m uint32
}{
	{0x0043, 0x0204, 0x01ad},
	{0x0085, 0x0228, 0x02c1},
	{0x00c8, 0x0253, 0x0363},
	{0x010a, 0x0282, 0x03df},
	{0x014d, 0x0177, 0x01dd},
	{0x019a, 0x0101, 0x0127},
	{0x029a, 0x0037, 0x002b},
}

// computeLux converts raw channel counts taken at 1x gain and 13.7ms to lux.
func computeLux(ch0, ch1 uint32) uint32 {
	// scale 13.7ms to nominal 402ms, then 1x gain to 16x
	scale := uint32(chScaleT0) << 4
	ch0 = (ch0 * scale) >> chScale
	ch1 = (ch1 * scale) >> chScale

	var ratio1 uint32
	if ch0 != 0 {
		ratio1 = (ch1 << (ratioScale + 1)) / ch0
	}
	ratio := (ratio1 + 1) >> 1

	var b, m uint32
	for _, c := range csCoefficients {
		if ratio <= c.k {
			b, m = c.b, c.m
			break
		}
	}

	if ch1*m > ch0*b {
		return 0
	}
	temp := ch0*b - ch1*m
	temp += 1 << (luxScale - 1)
	return temp >> luxScale
}
