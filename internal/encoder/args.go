package encoder

import "strconv"

// Preset returns the encoder-appropriate speed/quality preset. Preset
// vocabularies differ per vendor API: NVENC uses p1-p7, AMF uses
// speed/balanced/quality, QSV and libx264 use the x264-style names.
func Preset(enc Encoder) string {
	switch enc {
	case NVENC:
		return "p4"
	case AMF:
		return "balanced"
	case QSV, Software:
		return "medium"
	}
	return "medium"
}

// QualityArgs translates the normalized 0-51 quality value (lower is better)
// into the vendor's native rate-control arguments for the first video stream.
func QualityArgs(enc Encoder, quality int) []string {
	q := strconv.Itoa(quality)
	switch enc {
	case NVENC:
		return []string{"-rc:v:0", "vbr", "-cq:v:0", q}
	case AMF:
		return []string{"-rc:v:0", "vbr_latency", "-qp_i:v:0", q}
	case QSV:
		return []string{"-global_quality:v:0", q}
	case Software:
		return []string{"-crf:v:0", q}
	}
	return nil
}
