package audio

import "encoding/binary"

// Convert returns a copy of b in the target format. If the buffer already
// matches the target, it is returned unchanged (zero allocation).
// Conversion order: resample first, then channel convert, so that stereo
// input is not resampled twice when the target is mono.
func Convert(b Buffer, target Format) Buffer {
	// Drop frames with odd byte counts outright; they cannot be valid
	// int16 PCM.
	if len(b.Data)%2 != 0 {
		return Buffer{SampleRate: target.SampleRate, Channels: target.Channels}
	}

	if b.SampleRate == target.SampleRate && b.Channels == target.Channels {
		return b
	}

	pcm := b.Data
	rate := b.SampleRate
	channels := b.Channels

	if rate != target.SampleRate {
		if channels == 1 {
			pcm = ResampleMono16(pcm, rate, target.SampleRate)
		} else {
			pcm = ResampleStereo16(pcm, rate, target.SampleRate)
		}
		rate = target.SampleRate
	}

	if channels != target.Channels {
		switch {
		case channels == 1 && target.Channels == 2:
			pcm = MonoToStereo(pcm)
		case channels == 2 && target.Channels == 1:
			pcm = StereoToMono(pcm)
		}
		channels = target.Channels
	}

	return Buffer{Data: pcm, SampleRate: rate, Channels: channels}
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono
// output. Uses int32 arithmetic to prevent overflow and clamps to the int16
// range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(binary.LittleEndian.Uint16(pcm[i*4 : i*4+2])))
		r := int32(int16(binary.LittleEndian.Uint16(pcm[i*4+2 : i*4+4])))
		avg := (l + r) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(avg)))
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. If srcRate == dstRate, the input is returned
// unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(binary.LittleEndian.Uint16(pcm[srcIdx*2 : srcIdx*2+2]))
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(binary.LittleEndian.Uint16(pcm[(srcIdx+1)*2 : (srcIdx+1)*2+2]))
		}

		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(v))
	}
	return out
}

// ResampleStereo16 resamples 16-bit stereo PCM from srcRate to dstRate using
// linear interpolation. Each stereo frame is 4 bytes (L+R interleaved).
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 4 {
		return pcm
	}
	srcFrames := len(pcm) / 4
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*4)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		l0 := int16(binary.LittleEndian.Uint16(pcm[srcIdx*4 : srcIdx*4+2]))
		r0 := int16(binary.LittleEndian.Uint16(pcm[srcIdx*4+2 : srcIdx*4+4]))

		l1, r1 := l0, r0
		if srcIdx+1 < srcFrames {
			l1 = int16(binary.LittleEndian.Uint16(pcm[(srcIdx+1)*4 : (srcIdx+1)*4+2]))
			r1 = int16(binary.LittleEndian.Uint16(pcm[(srcIdx+1)*4+2 : (srcIdx+1)*4+4]))
		}

		lv := int16(float64(l0)*(1-frac) + float64(l1)*frac)
		rv := int16(float64(r0)*(1-frac) + float64(r1)*frac)
		binary.LittleEndian.PutUint16(out[i*4:i*4+2], uint16(lv))
		binary.LittleEndian.PutUint16(out[i*4+2:i*4+4], uint16(rv))
	}
	return out
}
