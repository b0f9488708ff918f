// Package urdf builds a kinematic tree from a URDF robot description.
//
// The format is handled permissively: only a missing <robot> root, malformed
// XML, or a robot without links is fatal. Everything else degrades to a
// documented default and is reported as a Warning.
package urdf

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-mimic/internal/httpc"
	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/kinematics"
)

// FallbackBoxSize is the edge length of the placeholder box used for
// unknown geometry.
const FallbackBoxSize = 0.05

// Result is a parsed description.
type Result struct {
	Tree     *kinematics.Tree
	Warnings []Warning
}

// XML document shapes. Only the parts the core needs are decoded.
type xmlRobot struct {
	XMLName xml.Name
	Name    string     `xml:"name,attr"`
	Links   []xmlLink  `xml:"link"`
	Joints  []xmlJoint `xml:"joint"`
}

type xmlLink struct {
	Name    string      `xml:"name,attr"`
	Visuals []xmlVisual `xml:"visual"`
}

type xmlVisual struct {
	Name     string       `xml:"name,attr"`
	Origin   *xmlOrigin   `xml:"origin"`
	Geometry *xmlGeometry `xml:"geometry"`
}

type xmlOrigin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type xmlGeometry struct {
	Box *struct {
		Size string `xml:"size,attr"`
	} `xml:"box"`
	Cylinder *struct {
		Radius string `xml:"radius,attr"`
		Length string `xml:"length,attr"`
	} `xml:"cylinder"`
	Sphere *struct {
		Radius string `xml:"radius,attr"`
	} `xml:"sphere"`
	Mesh *struct {
		Filename string `xml:"filename,attr"`
		Scale    string `xml:"scale,attr"`
	} `xml:"mesh"`
	Other []struct {
		XMLName xml.Name
	} `xml:",any"`
}

type xmlLinkRef struct {
	Link string `xml:"link,attr"`
}

type xmlJoint struct {
	Name   string      `xml:"name,attr"`
	Type   string      `xml:"type,attr"`
	Parent *xmlLinkRef `xml:"parent"`
	Child  *xmlLinkRef `xml:"child"`
	Origin *xmlOrigin  `xml:"origin"`
	Axis   *struct {
		XYZ string `xml:"xyz,attr"`
	} `xml:"axis"`
	Limit *struct {
		Lower string `xml:"lower,attr"`
		Upper string `xml:"upper,attr"`
	} `xml:"limit"`
}

// parser accumulates warnings while converting one document.
type parser struct {
	source   string
	warnings []Warning
}

func (p *parser) warn(kind WarningKind, element, format string, args ...any) {
	w := Warning{Kind: kind, Element: element, Message: fmt.Sprintf(format, args...)}
	p.warnings = append(p.warnings, w)
	log.Component("urdf").Warn(w.Message, "kind", string(w.Kind), "element", w.Element, "source", p.source)
}

// Parse builds a tree from URDF bytes.
func Parse(data []byte) (*Result, error) {
	return parse("<bytes>", data)
}

// ParseFile reads and parses a URDF file.
func ParseFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	return parse(path, data)
}

// Load parses a description from a local path or an http(s) URL.
func Load(ctx context.Context, location string) (*Result, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err := httpc.Fetch(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("fetch description: %w", err)
		}
		return parse(location, data)
	}
	return ParseFile(location)
}

func parse(source string, data []byte) (*Result, error) {
	var doc xmlRobot
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	if doc.XMLName.Local != "robot" {
		return nil, &ParseError{Source: source, Err: ErrNoRobot}
	}

	p := &parser{source: source}
	tree := kinematics.NewTree(doc.Name)

	for _, xl := range doc.Links {
		link := &kinematics.Link{Name: xl.Name}
		for _, xv := range xl.Visuals {
			link.Visuals = append(link.Visuals, p.visual(xl.Name, xv))
		}
		if err := tree.AddLink(link); err != nil {
			p.warn(WarnDuplicate, xl.Name, "%v", err)
		}
	}
	if len(tree.Links()) == 0 {
		return nil, &ParseError{Source: source, Err: ErrNoLinks}
	}

	children := make(map[string]bool)
	var accepted []string
	for _, xj := range doc.Joints {
		j, ok := p.joint(xj)
		if !ok {
			continue
		}
		if err := tree.AddJoint(j); err != nil {
			p.warn(WarnDuplicate, xj.Name, "%v", err)
			continue
		}
		children[j.Child] = true
		accepted = append(accepted, j.Name)
	}

	var candidates []string
	for _, l := range tree.Links() {
		if !children[l.Name] {
			candidates = append(candidates, l.Name)
		}
	}
	if len(candidates) == 0 {
		return nil, &ParseError{Source: source, Err: ErrNoRoot}
	}
	if len(candidates) > 1 {
		p.warn(WarnAmbiguousRoot, candidates[0], "%d root candidates %v, using %s", len(candidates), candidates, candidates[0])
	}
	if err := tree.SetRoot(candidates[0]); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}

	for _, name := range accepted {
		if err := tree.Attach(name); err != nil {
			p.warn(WarnAttach, name, "%v", err)
		}
	}

	log.Component("urdf").Info("robot description loaded",
		"robot", doc.Name, "source", source,
		"links", len(tree.Links()), "joints", len(tree.Joints()),
		"root", candidates[0], "warnings", len(p.warnings))

	return &Result{Tree: tree, Warnings: p.warnings}, nil
}

// joint converts one <joint>. It returns false when the joint must be skipped.
func (p *parser) joint(xj xmlJoint) (*kinematics.Joint, bool) {
	if xj.Parent == nil || xj.Parent.Link == "" || xj.Child == nil || xj.Child.Link == "" {
		p.warn(WarnMissingLink, xj.Name, "joint needs both parent and child links, skipping")
		return nil, false
	}

	kind := kinematics.JointKind(strings.ToLower(strings.TrimSpace(xj.Type)))
	switch kind {
	case kinematics.Revolute, kinematics.Continuous, kinematics.Prismatic, kinematics.Fixed:
	default:
		p.warn(WarnUnknownJointType, xj.Name, "unknown joint type %q, treating as fixed", xj.Type)
		kind = kinematics.Fixed
	}

	j := &kinematics.Joint{
		Name:   xj.Name,
		Kind:   kind,
		Parent: xj.Parent.Link,
		Child:  xj.Child.Link,
		Origin: p.origin(xj.Name, xj.Origin),
		Axis:   kinematics.UnitX,
	}

	if xj.Axis != nil && xj.Axis.XYZ != "" {
		j.Axis = p.vec(xj.Name, "axis", xj.Axis.XYZ, kinematics.UnitX)
	}

	j.Lower, j.Upper = kinematics.DefaultLimits(kind)
	if xj.Limit != nil {
		if xj.Limit.Lower != "" {
			j.Lower = p.float(xj.Name, "limit lower", xj.Limit.Lower, j.Lower)
		}
		if xj.Limit.Upper != "" {
			j.Upper = p.float(xj.Name, "limit upper", xj.Limit.Upper, j.Upper)
		}
	}

	return j, true
}

func (p *parser) visual(link string, xv xmlVisual) kinematics.Visual {
	return kinematics.Visual{
		Name:     xv.Name,
		Origin:   p.origin(link, xv.Origin),
		Geometry: p.geometry(link, xv.Geometry),
	}
}

func (p *parser) geometry(link string, xg *xmlGeometry) kinematics.Geometry {
	fallback := kinematics.Geometry{
		Kind: kinematics.Box,
		Size: r3.Vec{X: FallbackBoxSize, Y: FallbackBoxSize, Z: FallbackBoxSize},
	}

	switch {
	case xg == nil:
		p.warn(WarnFallbackGeometry, link, "visual without geometry, using placeholder box")
		return fallback
	case xg.Box != nil:
		return kinematics.Geometry{
			Kind: kinematics.Box,
			Size: p.vec(link, "box size", xg.Box.Size, fallback.Size),
		}
	case xg.Cylinder != nil:
		return kinematics.Geometry{
			Kind:   kinematics.Cylinder,
			Radius: p.float(link, "cylinder radius", xg.Cylinder.Radius, FallbackBoxSize/2),
			Length: p.float(link, "cylinder length", xg.Cylinder.Length, FallbackBoxSize),
		}
	case xg.Sphere != nil:
		return kinematics.Geometry{
			Kind:   kinematics.Sphere,
			Radius: p.float(link, "sphere radius", xg.Sphere.Radius, FallbackBoxSize/2),
		}
	case xg.Mesh != nil:
		g := kinematics.Geometry{
			Kind:     kinematics.Mesh,
			Filename: xg.Mesh.Filename,
			Scale:    r3.Vec{X: 1, Y: 1, Z: 1},
		}
		if xg.Mesh.Scale != "" {
			g.Scale = p.vec(link, "mesh scale", xg.Mesh.Scale, g.Scale)
		}
		return g
	}

	name := "empty"
	if len(xg.Other) > 0 {
		name = xg.Other[0].XMLName.Local
	}
	p.warn(WarnFallbackGeometry, link, "unknown geometry %q, using placeholder box", name)
	return fallback
}

func (p *parser) origin(element string, xo *xmlOrigin) kinematics.Origin {
	if xo == nil {
		return kinematics.Origin{}
	}
	return kinematics.Origin{
		XYZ: p.vec(element, "origin xyz", xo.XYZ, r3.Vec{}),
		RPY: p.vec(element, "origin rpy", xo.RPY, r3.Vec{}),
	}
}

// vec parses "x y z". Empty strings silently yield def.
func (p *parser) vec(element, attr, s string, def r3.Vec) r3.Vec {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return def
	}
	if len(fields) != 3 {
		p.warn(WarnBadNumber, element, "%s %q: want 3 numbers", attr, s)
		return def
	}
	var v [3]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			p.warn(WarnBadNumber, element, "%s %q: %v", attr, s, err)
			return def
		}
		v[i] = n
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

func (p *parser) float(element, attr, s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.warn(WarnBadNumber, element, "%s %q: %v", attr, s, err)
		return def
	}
	return n
}
