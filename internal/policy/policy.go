// Package policy holds the action to role table consulted by the authorization gate.
package policy

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/ukydev/garage-service/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicy []byte

// Action names a guarded operation.
type Action string

const (
	JobCreate          Action = "job.create"
	JobView            Action = "job.view"
	JobUpdateStatus    Action = "job.update_status"
	JobWorkLog         Action = "job.worklog"
	JobInspect         Action = "job.inspect"
	BookingCreate      Action = "booking.create"
	BookingView        Action = "booking.view"
	BookingUpdateState Action = "booking.update_status"
	BookingAssign      Action = "booking.assign"
	BookingCancel      Action = "booking.cancel"
	VehicleManage      Action = "vehicle.manage"
	VehicleView        Action = "vehicle.view"
	InventoryView      Action = "inventory.view"
	InventoryManage    Action = "inventory.manage"
	InventoryAdjust    Action = "inventory.adjust_stock"
	GoodsRequestView   Action = "goods_request.view"
	GoodsRequestHandle Action = "goods_request.handle"
	UserView           Action = "user.view"
	UserManage         Action = "user.manage"
	InvoiceView        Action = "invoice.view"
	InvoiceCreate      Action = "invoice.create"
	InvoicePay         Action = "invoice.pay"
	ReportView         Action = "report.view"
	OutboxManage       Action = "outbox.manage"
)

// Policy maps each action to the set of roles allowed to perform it.
type Policy struct {
	rules map[Action]map[models.Role]struct{}
}

type document struct {
	Actions map[string][]string `yaml:"actions"`
}

// Parse builds a policy from YAML. Unknown roles are rejected.
func Parse(data []byte) (*Policy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if len(doc.Actions) == 0 {
		return nil, fmt.Errorf("policy defines no actions")
	}

	p := &Policy{rules: make(map[Action]map[models.Role]struct{}, len(doc.Actions))}
	for action, roles := range doc.Actions {
		set := make(map[models.Role]struct{}, len(roles))
		for _, r := range roles {
			role := models.Role(r)
			if !models.IsValidRole(role) {
				return nil, fmt.Errorf("action %q: unknown role %q", action, r)
			}
			set[role] = struct{}{}
		}
		p.rules[Action(action)] = set
	}
	return p, nil
}

// Default returns the embedded policy.
func Default() *Policy {
	p, err := Parse(defaultPolicy)
	if err != nil {
		panic(err)
	}
	return p
}

// Load reads the policy from path, or returns the embedded policy when path is empty.
func Load(path string) (*Policy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Allows reports whether role may perform action. Unknown actions are denied.
func (p *Policy) Allows(action Action, role models.Role) bool {
	roles, ok := p.rules[action]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}

// Roles lists the roles allowed for action, sorted.
func (p *Policy) Roles(action Action) []models.Role {
	out := make([]models.Role, 0, len(p.rules[action]))
	for r := range p.rules[action] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
