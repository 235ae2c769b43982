package videogenerator

import "fmt"

var colorOrange = Color{1, 0.5, 0}
var colorGreen = Color{0.2, 1, 0.2}
var colorBlue = Color{0.5, 0.85, 1}
var colorYellow = Color{0.8, 0.6, 0.05}
var colorGrey = Color{0.5, 0.5, 0.5}
var colorPink = Color{1, 0.6, 0.7}
var colorGlow = Color{1, 0.95, 0.6}

var colors = []Color{colorOrange, colorGreen, colorBlue, colorPink, colorYellow, colorGrey}

var resolution1080p = ScreenResolution{1920, 1080}
var resolution720p = ScreenResolution{1280, 720}
var resolution480p = ScreenResolution{854, 480}
var resolution360p = ScreenResolution{640, 360}

var resolutions = map[string]ScreenResolution{
	"1080p": resolution1080p,
	"720p":  resolution720p,
	"480p":  resolution480p,
	"360p":  resolution360p,
}

func Resolution(name string) (ScreenResolution, error) {
	r, ok := resolutions[name]
	if !ok {
		return ScreenResolution{}, fmt.Errorf("unknown resolution %q", name)
	}
	return r, nil
}

const DEBUG = false
const noteBorderRadius float64 = 3
const framePattern = "fr%05d.png"
