package enums

// MemberRole is a user's role inside one org.
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

var memberRoles = newSet("member role", MemberRoleOwner, MemberRoleAdmin, MemberRoleMember)

func (m MemberRole) String() string { return string(m) }

func (m MemberRole) IsValid() bool { return memberRoles.contains(m) }

// CanManage reports whether the role may change org settings and delete rows.
func (m MemberRole) CanManage() bool {
	return m == MemberRoleOwner || m == MemberRoleAdmin
}

func ParseMemberRole(value string) (MemberRole, error) { return memberRoles.parse(value) }
