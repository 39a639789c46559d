package identity

import (
	"fmt"
	"strconv"
)

// DeviceOS is the platform a Bedrock client runs on.
type DeviceOS int

const (
	DeviceOSUnknown DeviceOS = iota
	DeviceOSAndroid
	DeviceOSIOS
	DeviceOSOSX
	DeviceOSAmazon
	DeviceOSGearVR
	DeviceOSHololens
	DeviceOSWindows
	DeviceOSWin32
	DeviceOSDedicated
	DeviceOSTVOS
	DeviceOSPS4
	DeviceOSSwitch
	DeviceOSXbox
	DeviceOSWindowsPhone
)

var deviceOSNames = [...]string{
	"Unknown",
	"Android",
	"iOS",
	"macOS",
	"Amazon",
	"Gear VR",
	"Hololens",
	"Windows 10",
	"Windows x86",
	"Dedicated",
	"Apple TV",
	"PS4",
	"Switch",
	"Xbox One",
	"Windows Phone",
}

func (d DeviceOS) Valid() bool {
	return d >= DeviceOSUnknown && int(d) < len(deviceOSNames)
}

func (d DeviceOS) String() string {
	if !d.Valid() {
		return "DeviceOS(" + strconv.Itoa(int(d)) + ")"
	}
	return deviceOSNames[d]
}

func parseDeviceOS(s string) (DeviceOS, error) {
	i, err := strconv.Atoi(s)
	if err != nil || !DeviceOS(i).Valid() {
		return DeviceOSUnknown, fmt.Errorf("%w: device os %q", ErrInvalidEnum, s)
	}
	return DeviceOS(i), nil
}

// InputMode is the input method the Bedrock client currently uses.
type InputMode int

const (
	InputModeUnknown InputMode = iota
	InputModeKeyboardMouse
	InputModeTouch
	InputModeController
	InputModeVR
)

var inputModeNames = [...]string{
	"Unknown",
	"Keyboard & Mouse",
	"Touch",
	"Controller",
	"VR",
}

func (m InputMode) Valid() bool {
	return m >= InputModeUnknown && int(m) < len(inputModeNames)
}

func (m InputMode) String() string {
	if !m.Valid() {
		return "InputMode(" + strconv.Itoa(int(m)) + ")"
	}
	return inputModeNames[m]
}

func parseInputMode(s string) (InputMode, error) {
	i, err := strconv.Atoi(s)
	if err != nil || !InputMode(i).Valid() {
		return InputModeUnknown, fmt.Errorf("%w: input mode %q", ErrInvalidEnum, s)
	}
	return InputMode(i), nil
}
