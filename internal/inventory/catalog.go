package inventory

import "context"

// FindSubstance searches substances by name and CAS number. Callers use the
// first match.
func (c *Client) FindSubstance(ctx context.Context, name, cas string) ([]Substance, error) {
	body := map[string]any{
		"name": name,
		"cas":  cas,
	}

	var matches []Substance
	if err := c.post(ctx, endpointFindSubstance, body, true, &matches); err != nil {
		return nil, err
	}

	return matches, nil
}

// ListLocations returns every storage location in the inventory.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var locations []Location
	if err := c.post(ctx, endpointLocations, nil, true, &locations); err != nil {
		return nil, err
	}

	return locations, nil
}
