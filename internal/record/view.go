package record

// View is the queue projection of a source record. It is computed on read
// and never stored.
type View struct {
	ID        string  `json:"id"`
	SourceID  *string `json:"source_id"`
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	CreatedAt *string `json:"created_at"`
	UpdatedAt *string `json:"updated_at"`
}

// View projects src for display. Timestamps are shown as stored.
func (r *Resolver) View(src *Source) View {
	return View{
		ID:        src.StorageID(),
		SourceID:  r.optional(src, FieldSourceID),
		Title:     r.optional(src, FieldTitle),
		Content:   r.optional(src, FieldContent),
		CreatedAt: r.optional(src, FieldCreatedAt),
		UpdatedAt: r.optional(src, FieldUpdatedAt),
	}
}

func (r *Resolver) optional(src *Source, f Field) *string {
	s, ok := r.String(src, f)
	if !ok {
		return nil
	}
	return &s
}
