package shadow

// allocateGroup reserves count square regions of resolution x resolution
// from the atlas as one transaction. If any request fails, every region
// granted so far is freed and nil is returned, so a light that cannot
// fully allocate leaves no orphaned regions behind. Used by cascade sets
// and cubemaps.
func allocateGroup(atlas *Atlas, count, resolution int) []*Region {
	granted := make([]*Region, 0, count)
	for i := 0; i < count; i++ {
		region := atlas.Allocate(resolution, resolution)
		if region == nil {
			for _, r := range granted {
				atlas.Free(r.ID)
			}
			return nil
		}
		granted = append(granted, region)
	}
	return granted
}
