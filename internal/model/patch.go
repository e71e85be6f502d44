package model

// NodePatch is a partial node update. Nil fields leave the stored value as is.
type NodePatch struct {
	ID      string      `json:"id"`
	Address *string     `json:"address,omitempty"`
	Status  *NodeStatus `json:"status,omitempty"`
	CPU     *float64    `json:"cpu,omitempty"`
	Memory  *float64    `json:"memory,omitempty"`
	Disk    *float64    `json:"disk,omitempty"`
	Models  *[]string   `json:"models,omitempty"`
}

// Apply returns base with every present field of p written over it.
func (p NodePatch) Apply(base Node) Node {
	out := base.Clone()
	out.ID = p.ID
	if p.Address != nil {
		out.Address = *p.Address
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.CPU != nil {
		out.CPU = *p.CPU
	}
	if p.Memory != nil {
		out.Memory = *p.Memory
	}
	if p.Disk != nil {
		out.Disk = *p.Disk
	}
	if p.Models != nil {
		out.Models = cloneStrings(*p.Models)
	}
	return out
}

// FullNodePatch returns a patch that sets every field of n.
func FullNodePatch(n Node) NodePatch {
	models := cloneStrings(n.Models)
	return NodePatch{
		ID:      n.ID,
		Address: &n.Address,
		Status:  &n.Status,
		CPU:     &n.CPU,
		Memory:  &n.Memory,
		Disk:    &n.Disk,
		Models:  &models,
	}
}

// ModelPatch is a partial model update keyed by Name.
type ModelPatch struct {
	Name     string       `json:"name"`
	Size     *string      `json:"size,omitempty"`
	Status   *ModelStatus `json:"status,omitempty"`
	Replicas *[]string    `json:"replicas,omitempty"`
	Ready    *bool        `json:"ready,omitempty"`
}

// Apply returns base with every present field of p written over it.
func (p ModelPatch) Apply(base Model) Model {
	out := base.Clone()
	out.Name = p.Name
	if p.Size != nil {
		out.Size = *p.Size
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Replicas != nil {
		out.Replicas = cloneStrings(*p.Replicas)
	}
	if p.Ready != nil {
		out.Ready = *p.Ready
	}
	return out
}

// FullModelPatch returns a patch that sets every field of m.
func FullModelPatch(m Model) ModelPatch {
	replicas := cloneStrings(m.Replicas)
	return ModelPatch{
		Name:     m.Name,
		Size:     &m.Size,
		Status:   &m.Status,
		Replicas: &replicas,
		Ready:    &m.Ready,
	}
}
