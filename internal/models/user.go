package models

import (
	"sort"
	"time"
)

type UserRole string

const (
	RoleAdmin        UserRole = "admin"
	RoleReceptionist UserRole = "receptionist"
	RoleTechnician   UserRole = "technician"
	RoleAccountant   UserRole = "accountant"
)

func (r UserRole) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Permissions returns the flags granted to the role.
func (r UserRole) Permissions() Permission {
	return rolePermissions[r]
}

func (r UserRole) Can(p Permission) bool {
	return r.Permissions().Has(p)
}

// Permission is a set of capability flags.
type Permission uint32

const (
	PermSampleReceive Permission = 1 << iota
	PermInvoiceIssue
	PermBillingProceed
	PermCatalogManage
	PermClientManage
	PermAuditView

	permAll = PermSampleReceive | PermInvoiceIssue | PermBillingProceed |
		PermCatalogManage | PermClientManage | PermAuditView
)

var permissionNames = map[Permission]string{
	PermSampleReceive:  "sample.receive",
	PermInvoiceIssue:   "invoice.issue",
	PermBillingProceed: "billing.proceed",
	PermCatalogManage:  "catalog.manage",
	PermClientManage:   "client.manage",
	PermAuditView:      "audit.view",
}

var rolePermissions = map[UserRole]Permission{
	RoleAdmin:        permAll,
	RoleReceptionist: PermSampleReceive | PermClientManage,
	RoleTechnician:   PermSampleReceive | PermCatalogManage,
	RoleAccountant:   PermInvoiceIssue | PermBillingProceed | PermClientManage | PermAuditView,
}

func (p Permission) Has(q Permission) bool {
	return q != 0 && p&q == q
}

// Names lists the dotted names of every flag in p, sorted.
func (p Permission) Names() []string {
	out := make([]string, 0, len(permissionNames))
	for flag, name := range permissionNames {
		if p&flag != 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func ParsePermission(name string) (Permission, bool) {
	for flag, n := range permissionNames {
		if n == name {
			return flag, true
		}
	}
	return 0, false
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Username     string   `gorm:"uniqueIndex;size:50;not null" json:"username"`
	FullName     string   `gorm:"size:255" json:"fullName"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Role         UserRole `gorm:"type:varchar(20);not null" json:"role"`
}
