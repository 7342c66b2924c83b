package properties

import "github.com/smazurov/uvcctl/internal/capture"

// Raw V4L2 control ids used as fallbacks. Handles that do not translate the
// generic ids still reach the driver through these.
const (
	cidBrightness       capture.PropertyID = 0x00980900
	cidContrast         capture.PropertyID = 0x00980901
	cidSaturation       capture.PropertyID = 0x00980902
	cidHue              capture.PropertyID = 0x00980903
	cidGamma            capture.PropertyID = 0x00980910
	cidExposure         capture.PropertyID = 0x00980911
	cidGain             capture.PropertyID = 0x00980913
	cidWhiteBalanceTemp capture.PropertyID = 0x0098091a
	cidSharpness        capture.PropertyID = 0x0098091b
	cidBacklight        capture.PropertyID = 0x0098091c
	cidExposureAuto     capture.PropertyID = 0x009a0901
	cidExposureAbsolute capture.PropertyID = 0x009a0902
	cidFocusAbsolute    capture.PropertyID = 0x009a090a
	cidFocusAuto        capture.PropertyID = 0x009a090c
	cidZoomAbsolute     capture.PropertyID = 0x009a090d
	cidAnalogueGain     capture.PropertyID = 0x009e0903
)

var defaultSpecs = []Spec{
	{Name: "brightness", Primary: capture.PropBrightness, Fallbacks: []capture.PropertyID{cidBrightness}},
	{Name: "contrast", Primary: capture.PropContrast, Fallbacks: []capture.PropertyID{cidContrast}},
	{Name: "saturation", Primary: capture.PropSaturation, Fallbacks: []capture.PropertyID{cidSaturation}},
	{Name: "hue", Primary: capture.PropHue, Fallbacks: []capture.PropertyID{cidHue}},
	{Name: "gain", Primary: capture.PropGain, Fallbacks: []capture.PropertyID{cidGain, cidAnalogueGain}},
	{Name: NameExposure, Primary: capture.PropExposure, Fallbacks: []capture.PropertyID{cidExposureAbsolute, cidExposure}},
	{Name: NameAutoExposure, Primary: capture.PropAutoExposure, Fallbacks: []capture.PropertyID{cidExposureAuto}},
	{Name: "gamma", Primary: capture.PropGamma, Fallbacks: []capture.PropertyID{cidGamma}},
	{Name: "backlight", Primary: capture.PropBacklight, Fallbacks: []capture.PropertyID{cidBacklight}},
	{Name: "temperature", Primary: capture.PropTemperature, Fallbacks: []capture.PropertyID{cidWhiteBalanceTemp}},
	{Name: "zoom", Primary: capture.PropZoom, Fallbacks: []capture.PropertyID{cidZoomAbsolute}},
	{Name: "focus", Primary: capture.PropFocus, Fallbacks: []capture.PropertyID{cidFocusAbsolute}},
	{Name: "autofocus", Primary: capture.PropAutoFocus, Fallbacks: []capture.PropertyID{cidFocusAuto}},
	{Name: "sharpness", Primary: capture.PropSharpness, Fallbacks: []capture.PropertyID{cidSharpness}},
	{Name: NameFPS, Primary: capture.PropFPS},
}

// Default returns the registry tuned for the ELP 8MP family.
func Default() *Registry {
	r, err := NewRegistry(defaultSpecs)
	if err != nil {
		panic("properties: invalid default registry: " + err.Error())
	}
	return r
}
