package ir

// ResourceType identifies which adapter handles a resource.
type ResourceType string

const (
	TypeVPC           ResourceType = "vpc"
	TypeSubnet        ResourceType = "subnet"
	TypeSecurityGroup ResourceType = "security_group"
	TypeEC2Instance   ResourceType = "ec2_instance"
	TypeRDSInstance   ResourceType = "rds_instance"
	TypeECRRepository ResourceType = "ecr_repository"
	TypeEKSCluster    ResourceType = "eks_cluster"
	TypeRoute53Record ResourceType = "route53_record"
)

// KnownTypes lists every resource type the engine can dispatch.
var KnownTypes = []ResourceType{
	TypeVPC,
	TypeSubnet,
	TypeSecurityGroup,
	TypeEC2Instance,
	TypeRDSInstance,
	TypeECRRepository,
	TypeEKSCluster,
	TypeRoute53Record,
}

// Resource is a single declared resource.
type Resource struct {
	ID         string         `yaml:"id" json:"id"`
	Type       ResourceType   `yaml:"type" json:"type"`
	Attributes map[string]any `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	DependsOn  []string       `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// IsKnownType reports whether t maps to a registered adapter family.
func IsKnownType(t ResourceType) bool {
	for _, k := range KnownTypes {
		if t == k {
			return true
		}
	}
	return false
}
