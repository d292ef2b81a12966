package reconstruction

// channel is one real-valued component of the reconstruction.
type channel int

const (
	realPart channel = iota
	imagPart
)

func (c channel) String() string {
	if c == imagPart {
		return "imag"
	}
	return "real"
}

// channelSet is the list of components reconstructed, fixed for a run.
type channelSet []channel

func newChannelSet(onlyReal bool) channelSet {
	if onlyReal {
		return channelSet{realPart}
	}
	return channelSet{realPart, imagPart}
}

func (cs channelSet) has(c channel) bool {
	for _, v := range cs {
		if v == c {
			return true
		}
	}
	return false
}
