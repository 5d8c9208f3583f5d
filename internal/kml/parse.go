// Package kml turns a KML document into named polygon regions for the map.
package kml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	ColorRightBank = "#1E40AF"
	ColorLeftBank  = "#8B0000"
)

var (
	ErrInvalidXML   = errors.New("KML 解析失敗：無效的 XML 格式")
	ErrNoPlacemarks = errors.New("未找到有效的地圖資料")
)

// ParseError reports a document that is not usable map data.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// Point is a WGS84 position.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Placemark is a named polygon ready to draw.
type Placemark struct {
	Name        string  `json:"name"`
	Coordinates []Point `json:"coordinates"`
	Color       string  `json:"color"`
}

// node is a generic element tree used to search a placemark's descendants
// regardless of how its geometry is nested.
type node struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
	Nodes   []node `xml:",any"`
}

func (n *node) find(local string) *node {
	for i := range n.Nodes {
		c := &n.Nodes[i]
		if c.XMLName.Local == local {
			return c
		}
		if found := c.find(local); found != nil {
			return found
		}
	}
	return nil
}

// Parse reads every Placemark in document order. Coordinate pairs that do not
// parse or fall outside WGS84 bounds are dropped; a placemark left with no
// pairs is dropped. The whole document must be well-formed.
func Parse(data []byte) ([]Placemark, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var (
		out   []Placemark
		index int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("%w: %v", ErrInvalidXML, err)}
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Placemark" {
			continue
		}
		var pm node
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("%w: %v", ErrInvalidXML, err)}
		}
		if p, ok := buildPlacemark(&pm, index); ok {
			out = append(out, p)
		}
		index++
	}
	if len(out) == 0 {
		return nil, &ParseError{Err: ErrNoPlacemarks}
	}
	return out, nil
}

func buildPlacemark(pm *node, index int) (Placemark, bool) {
	coordNode := pm.find("coordinates")
	if coordNode == nil {
		return Placemark{}, false
	}
	coords := ParseCoordinates(coordNode.Text)
	if len(coords) == 0 {
		return Placemark{}, false
	}

	name := ""
	if n := pm.find("name"); n != nil {
		name = strings.TrimSpace(n.Text)
	}
	if name == "" {
		name = fmt.Sprintf("未命名區域 %d", index+1)
	}
	style := ""
	if s := pm.find("styleUrl"); s != nil {
		style = s.Text
	}
	return Placemark{Name: name, Coordinates: coords, Color: pickColor(name, style)}, true
}

// ParseCoordinates parses a whitespace separated "lng,lat[,alt]" list.
func ParseCoordinates(text string) []Point {
	var pts []Point
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			continue
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		if math.IsNaN(lat) || math.IsNaN(lng) {
			continue
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			continue
		}
		pts = append(pts, Point{Lat: lat, Lng: lng})
	}
	return pts
}

// pickColor: 右 (right bank) or style "1" is blue, 左 (left bank) or style "0"
// is red, anything else red.
func pickColor(name, style string) string {
	switch {
	case strings.Contains(name, "右") || strings.Contains(style, "1"):
		return ColorRightBank
	case strings.Contains(name, "左") || strings.Contains(style, "0"):
		return ColorLeftBank
	}
	return ColorLeftBank
}
