package models

import "strings"

type Vendor struct {
	ID             int    `json:"id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	SupervisorCode string `json:"supervisor_code"`
}

type Client struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Route struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Category struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Supervisor struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ReferenceSnapshot is a read-only view of reference data taken at the
// start of a promotion
type ReferenceSnapshot struct {
	VendorsByCode   map[string]Vendor
	ClientsByCode   map[string]Client
	ClientsByName   map[string]Client
	RoutesByCode    map[string]Route
	RoutesByName    map[string]Route
	CategoriesByKey map[string]Category
}

func NewReferenceSnapshot(vendors []Vendor, clients []Client, routes []Route, categories []Category) *ReferenceSnapshot {
	s := &ReferenceSnapshot{
		VendorsByCode:   make(map[string]Vendor, len(vendors)),
		ClientsByCode:   make(map[string]Client, len(clients)),
		ClientsByName:   make(map[string]Client, len(clients)),
		RoutesByCode:    make(map[string]Route, len(routes)),
		RoutesByName:    make(map[string]Route, len(routes)),
		CategoriesByKey: make(map[string]Category, len(categories)*2),
	}
	for _, v := range vendors {
		s.VendorsByCode[ReferenceKey(v.Code)] = v
	}
	for _, c := range clients {
		if c.Code != "" {
			s.ClientsByCode[ReferenceKey(c.Code)] = c
		}
		s.ClientsByName[ReferenceKey(c.Name)] = c
	}
	for _, r := range routes {
		if r.Code != "" {
			s.RoutesByCode[ReferenceKey(r.Code)] = r
		}
		s.RoutesByName[ReferenceKey(r.Name)] = r
	}
	for _, c := range categories {
		s.CategoriesByKey[ReferenceKey(c.Code)] = c
		s.CategoriesByKey[ReferenceKey(c.Name)] = c
	}
	return s
}

// ReferenceKey folds case and inner whitespace for lookups
func ReferenceKey(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// ReferenceSet is a batch of reference entities to load
type ReferenceSet struct {
	Supervisors []Supervisor `json:"supervisors"`
	Vendors     []Vendor     `json:"vendors"`
	Clients     []Client     `json:"clients"`
	Routes      []Route      `json:"routes"`
	Categories  []Category   `json:"categories"`
}
