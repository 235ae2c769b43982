package viewport

var blackKeysInOctave = map[int]bool{1: true, 3: true, 6: true, 8: true, 10: true}

const blackKeyWidthRatio = 0.6

func IsBlackKey(pitch uint8) bool {
	return blackKeysInOctave[int(pitch)%12]
}

// Keys lays out one row per pitch in scene coordinates, to the left of the
// impact line, highest pitch on top. Rows share ProjectY with the notes.
func (v *Viewport) Keys() []Key {
	var keyH = v.cfg.KeyHeightPixels
	var keyW = v.cfg.KeyboardWidthPixels
	if v.cfg.PianoRangeEnd < v.cfg.PianoRangeStart {
		return nil
	}

	var keys = make([]Key, 0, int(v.cfg.PianoRangeEnd-v.cfg.PianoRangeStart)+1)
	for p := int(v.cfg.PianoRangeStart); p <= int(v.cfg.PianoRangeEnd); p++ {
		var pitch = uint8(p)
		var black = IsBlackKey(pitch)
		var width = keyW
		if black {
			width = keyW * blackKeyWidthRatio
		}
		keys = append(keys, Key{
			Pitch: pitch,
			Black: black,
			Rect: Rect{
				X: -keyW,
				Y: v.ProjectY(pitch) - keyH/2,
				W: width,
				H: keyH,
			},
		})
	}
	return keys
}

// ScreenKeys is Keys with the scene transform applied. White keys come first
// so black keys can be drawn over them in order.
func (v *Viewport) ScreenKeys() []Key {
	var t = v.Transform()
	var keys = v.Keys()
	var out = make([]Key, 0, len(keys))
	for _, black := range []bool{false, true} {
		for _, k := range keys {
			if k.Black != black {
				continue
			}
			k.Rect = t.ApplyRect(k.Rect)
			out = append(out, k)
		}
	}
	return out
}
