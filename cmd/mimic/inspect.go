package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/teslashibe/go-mimic/pkg/kinematics"
	"github.com/teslashibe/go-mimic/pkg/retarget"
	"github.com/teslashibe/go-mimic/pkg/urdf"
)

type InspectCommand struct {
	JSON bool `long:"json" description:"Print the tree as JSON"`

	Args struct {
		Description string `positional-arg-name:"description" description:"URDF path or URL (defaults to robot.description)"`
	} `positional-args:"yes"`
}

type inspectJoint struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Parent string  `json:"parent"`
	Child  string  `json:"child"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

type inspectReport struct {
	Robot      string         `json:"robot"`
	Root       string         `json:"root"`
	Links      []string       `json:"links"`
	Joints     []inspectJoint `json:"joints"`
	Controlled []string       `json:"controlled"` // Retargeted joints present in the tree
	Missing    []string       `json:"missing"`    // Retargeted joints the tree lacks
	Warnings   []urdf.Warning `json:"warnings"`
}

func (c *InspectCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	location := c.Args.Description
	if location == "" {
		location = cfg.Robot.Description
	}
	if location == "" {
		return fmt.Errorf("no robot description given")
	}

	res, err := urdf.Load(context.Background(), location)
	if err != nil {
		return err
	}

	report := buildReport(res, cfg.Retarget.Leg.LegSides())
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(report)
	return nil
}

func buildReport(res *urdf.Result, legSides []retarget.Side) inspectReport {
	tree := res.Tree
	r := inspectReport{
		Robot:    tree.Name,
		Links:    []string{},
		Joints:   []inspectJoint{},
		Warnings: res.Warnings,
	}
	if root := tree.Root(); root != nil {
		r.Root = root.Name
	}
	for _, l := range tree.Links() {
		r.Links = append(r.Links, l.Name)
	}
	for _, j := range tree.Joints() {
		r.Joints = append(r.Joints, inspectJoint{
			Name:   j.Name,
			Kind:   string(j.Kind),
			Parent: j.Parent,
			Child:  j.Child,
			Lower:  j.Lower,
			Upper:  j.Upper,
		})
	}
	for _, name := range retarget.ControlledJoints(legSides) {
		if _, ok := tree.Joint(name); ok {
			r.Controlled = append(r.Controlled, name)
		} else {
			r.Missing = append(r.Missing, name)
		}
	}
	return r
}

func printReport(r inspectReport) {
	fmt.Printf("🤖 %s (root %s)\n", r.Robot, r.Root)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Links (%d): %s\n\n", len(r.Links), strings.Join(r.Links, ", "))

	fmt.Printf("Joints (%d):\n", len(r.Joints))
	for _, j := range r.Joints {
		limits := ""
		switch kind := kinematics.JointKind(j.Kind); {
		case kind == kinematics.Prismatic:
			limits = fmt.Sprintf("[%6.3fm, %6.3fm]", j.Lower, j.Upper)
		case kind.Movable():
			limits = fmt.Sprintf("[%7.1f°, %7.1f°]", kinematics.Degrees(j.Lower), kinematics.Degrees(j.Upper))
		}
		fmt.Printf("  %-20s %-10s %s → %s %s\n", j.Name, j.Kind, j.Parent, j.Child, limits)
	}
	fmt.Println()

	fmt.Printf("Retargeted joints: %d present", len(r.Controlled))
	if len(r.Missing) > 0 {
		fmt.Printf(", %d missing (%s)", len(r.Missing), strings.Join(r.Missing, ", "))
	}
	fmt.Println()

	if len(r.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Printf("  ⚠ %s\n", w)
		}
	}
}
