package bc

import (
	"bytes"
	"encoding/xml"
)

const XMLVersion = "1.1"

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" ?>` + "\n"

// Body - top level XML payload, all sections are optional.
// Unknown sections and fields are ignored on decode.
type Body struct {
	Encryption    *Encryption    `xml:"Encryption,omitempty"`
	LoginUser     *LoginUser     `xml:"LoginUser,omitempty"`
	LoginNet      *LoginNet      `xml:"LoginNet,omitempty"`
	DeviceInfo    *DeviceInfo    `xml:"DeviceInfo,omitempty"`
	VersionInfo   *VersionInfo   `xml:"VersionInfo,omitempty"`
	Preview       *Preview       `xml:"Preview,omitempty"`
	SystemGeneral *SystemGeneral `xml:"SystemGeneral,omitempty"`
	Norm          *Norm          `xml:"Norm,omitempty"`
}

// Encryption - login reply with the nonce
type Encryption struct {
	Version string `xml:"version,attr"`
	Type    string `xml:"type"` // only "md5" was seen
	Nonce   string `xml:"nonce"`
}

type LoginUser struct {
	Version  string `xml:"version,attr"`
	UserName string `xml:"userName"`
	Password string `xml:"password"`
	UserVer  uint32 `xml:"userVer"`
}

type LoginNet struct {
	Version string `xml:"version,attr"`
	Type    string `xml:"type"` // LAN, even on wifi
	UDPPort uint16 `xml:"udpPort"`
}

func NewLoginNet() *LoginNet {
	return &LoginNet{Version: XMLVersion, Type: "LAN"}
}

// DeviceInfo - camera sends much more, only resolution is decoded
type DeviceInfo struct {
	Version    string     `xml:"version,attr,omitempty"`
	Resolution Resolution `xml:"resolution"`
}

type Resolution struct {
	Name   string `xml:"resolutionName"` // "2304*1296"
	Width  uint32 `xml:"width"`
	Height uint32 `xml:"height"`
}

type VersionInfo struct {
	Name            string `xml:"name" json:"name"`
	SerialNumber    string `xml:"serialNumber" json:"serial_number"`
	BuildDay        string `xml:"buildDay" json:"build_day"`
	HardwareVersion string `xml:"hardwareVersion" json:"hardware_version"`
	CfgVersion      string `xml:"cfgVersion" json:"cfg_version"`
	FirmwareVersion string `xml:"firmwareVersion" json:"firmware_version"`
	Detail          string `xml:"detail" json:"detail"`
}

// Preview - start stream request
type Preview struct {
	Version    string `xml:"version,attr"`
	ChannelID  uint8  `xml:"channelId"`
	Handle     uint32 `xml:"handle"`
	StreamType string `xml:"streamType"`
}

// SystemGeneral - camera clock and general settings
type SystemGeneral struct {
	Version string `xml:"version,attr"`

	TimeZone *int32 `xml:"timeZone,omitempty"` // negative seconds offset from UTC
	Year     *int32 `xml:"year,omitempty"`
	Month    *uint8 `xml:"month,omitempty"`
	Day      *uint8 `xml:"day,omitempty"`
	Hour     *uint8 `xml:"hour,omitempty"`
	Minute   *uint8 `xml:"minute,omitempty"`
	Second   *uint8 `xml:"second,omitempty"`

	OSDFormat  *string `xml:"osdFormat,omitempty"`
	TimeFormat *uint8  `xml:"timeFormat,omitempty"`
	Language   *string `xml:"language,omitempty"`
	DeviceName *string `xml:"deviceName,omitempty"`
}

type Norm struct {
	Version string `xml:"version,attr"`
	Norm    string `xml:"norm"` // usually NTSC
}

// Extension - describes the payload after the payload offset
type Extension struct {
	Version    string  `xml:"version,attr"`
	BinaryData *uint32 `xml:"binaryData,omitempty"`
	UserName   *string `xml:"userName,omitempty"`
	Token      *string `xml:"token,omitempty"`
	ChannelID  *uint8  `xml:"channelId,omitempty"`
}

// NewBinaryExtension - extension that switches the message sequence to binary mode
func NewBinaryExtension() *Extension {
	one := uint32(1)
	return &Extension{Version: XMLVersion, BinaryData: &one}
}

func (e *Extension) IsBinary() bool {
	return e != nil && e.BinaryData != nil && *e.BinaryData == 1
}

func marshalXML(v any, root string) ([]byte, error) {
	buf := bytes.NewBufferString(xmlHeader)
	enc := xml.NewEncoder(buf)
	if err := enc.EncodeElement(v, xml.StartElement{Name: xml.Name{Local: root}}); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// unmarshalXML keeps everything decoded before an error,
// so a broken tail doesn't lose the known fields
func unmarshalXML(b []byte, v any) error {
	b = bytes.TrimRight(b, "\x00")
	return xml.Unmarshal(b, v)
}
