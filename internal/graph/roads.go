package graph

// RoadNetwork returns the built-in 26-node road network used when no graph is configured.
func RoadNetwork() *Graph {
	g, err := FromNodes("road-network", []Node{
		{ID: "A", X: 50, Y: 50, Neighbors: []string{"B", "C", "D"}},
		{ID: "B", X: 100, Y: 200, Neighbors: []string{"A", "E", "F"}},
		{ID: "C", X: 200, Y: 100, Neighbors: []string{"A", "G", "H"}},
		{ID: "D", X: 100, Y: 300, Neighbors: []string{"A", "I", "J"}},
		{ID: "E", X: 250, Y: 250, Neighbors: []string{"B", "F", "K"}},
		{ID: "F", X: 250, Y: 400, Neighbors: []string{"B", "E", "L"}},
		{ID: "G", X: 350, Y: 150, Neighbors: []string{"C", "H", "M"}},
		{ID: "H", X: 350, Y: 250, Neighbors: []string{"C", "G", "N"}},
		{ID: "I", X: 100, Y: 400, Neighbors: []string{"D", "J", "O"}},
		{ID: "J", X: 200, Y: 500, Neighbors: []string{"D", "I", "P"}},
		{ID: "K", X: 400, Y: 300, Neighbors: []string{"E", "L", "Q"}},
		{ID: "L", X: 400, Y: 400, Neighbors: []string{"F", "K", "R"}},
		{ID: "M", X: 500, Y: 100, Neighbors: []string{"G", "N", "S"}},
		{ID: "N", X: 500, Y: 250, Neighbors: []string{"G", "H", "M", "T"}},
		{ID: "O", X: 500, Y: 500, Neighbors: []string{"I", "P", "U"}},
		{ID: "P", X: 200, Y: 600, Neighbors: []string{"J", "O", "V"}},
		{ID: "Q", X: 550, Y: 350, Neighbors: []string{"K", "R", "W"}},
		{ID: "R", X: 550, Y: 450, Neighbors: []string{"L", "Q", "X"}},
		{ID: "S", X: 650, Y: 150, Neighbors: []string{"M", "T", "Y"}},
		{ID: "T", X: 650, Y: 300, Neighbors: []string{"N", "S", "Z"}},
		{ID: "U", X: 500, Y: 600, Neighbors: []string{"O", "V"}},
		{ID: "V", X: 350, Y: 600, Neighbors: []string{"P", "U"}},
		{ID: "W", X: 700, Y: 500, Neighbors: []string{"Q", "X"}},
		{ID: "X", X: 700, Y: 600, Neighbors: []string{"R", "W", "Z"}},
		{ID: "Y", X: 800, Y: 300, Neighbors: []string{"S", "Z"}},
		{ID: "Z", X: 800, Y: 600, Neighbors: []string{"T", "X", "Y"}},
	})
	if err != nil {
		panic(err)
	}
	return g
}
