// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

// Package ooxml reads the zip packages behind DOCX, PPTX and EPUB files.
package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// Common OOXML namespaces.
const (
	NSRelationships  = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSRelDoc         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSWordprocessing = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NSPresentationML = "http://schemas.openxmlformats.org/presentationml/2006/main"
)

// Package is an opened zip container. Parts are inflated through its Budget.
type Package struct {
	zr     *zip.Reader
	budget *Budget
}

// Open reads the whole stream and opens it as a zip package. A nil budget
// gets the default limits.
func Open(r io.Reader, budget *Budget) (*Package, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	if budget == nil {
		budget = NewBudget(0, 0)
	}
	return &Package{zr: zr, budget: budget}, nil
}

// Has reports whether the package contains the named part.
func (p *Package) Has(name string) bool {
	return p.file(name) != nil
}

// ReadPart returns the content of the named part.
func (p *Package) ReadPart(name string) ([]byte, error) {
	f := p.file(name)
	if f == nil {
		return nil, fmt.Errorf("part %q not found", name)
	}
	return p.budget.ReadFile(f)
}

// PartNames returns the names of all parts with the given prefix, in archive order.
func (p *Package) PartNames(prefix string) []string {
	var names []string
	for _, f := range p.zr.File {
		if strings.HasPrefix(f.Name, prefix) {
			names = append(names, f.Name)
		}
	}
	return names
}

func (p *Package) file(name string) *zip.File {
	for _, f := range p.zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Relationship represents an OOXML relationship.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// External reports whether the target lives outside the package (hyperlinks).
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// Relationships returns the relationships of a part keyed by ID. A part
// without a .rels file has no relationships.
func (p *Package) Relationships(partName string) (map[string]Relationship, error) {
	relsPath := RelsPathFor(partName)
	if !p.Has(relsPath) {
		return map[string]Relationship{}, nil
	}
	data, err := p.ReadPart(relsPath)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Items []Relationship `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", relsPath, err)
	}
	rels := make(map[string]Relationship, len(doc.Items))
	for _, rel := range doc.Items {
		rels[rel.ID] = rel
	}
	return rels, nil
}

// RelsPathFor returns the .rels path for a given part.
func RelsPathFor(partName string) string {
	dir, base := path.Split(partName)
	return dir + "_rels/" + base + ".rels"
}

// ResolveTarget resolves a relationship target against the part that owns it.
func ResolveTarget(partName, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(partName), target)
}

// CoreTitle returns dc:title from docProps/core.xml, or "" when absent.
func (p *Package) CoreTitle() string {
	data, err := p.ReadPart("docProps/core.xml")
	if err != nil {
		return ""
	}
	root, err := ParseNode(data)
	if err != nil {
		return ""
	}
	if t := root.Child("title"); t != nil {
		return strings.TrimSpace(t.Text)
	}
	return ""
}
