package diff3

// matchLines aligns base against side using a Myers shortest-edit-script
// diff. The returned slice has one element per base line: the index of the
// matching side line, or -1 when the base line was deleted or replaced.
// Matched indexes are strictly increasing.
func matchLines(base, side []string) []int {
	match := make([]int, len(base))
	for i := range match {
		match[i] = -1
	}

	n, m := len(base), len(side)
	if n == 0 || m == 0 {
		return match
	}

	limit := n + m
	offset := limit
	v := make([]int, 2*limit+1)
	var trace [][]int
	dFinal := -1

search:
	for d := 0; d <= limit; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && base[x] == side[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				dFinal = d
				break search
			}
		}
	}

	// Backtrack through the trace, recording every diagonal (equal-line) step.
	x, y := n, m
	for d := dFinal; d > 0; d-- {
		prev := trace[d]
		k := x - y

		var prevK int
		if k == -d || (k != d && prev[offset+k-1] < prev[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := prev[offset+prevK]
		prevY := prevX - prevK

		// Walk back the snake that followed the edit at depth d.
		snakeX, snakeY := x, y
		if prevK == k+1 {
			// Insertion: the step consumed one side line before the snake.
			for snakeX > prevX && snakeY > prevY+1 {
				snakeX--
				snakeY--
				match[snakeX] = snakeY
			}
		} else {
			// Deletion: the step consumed one base line before the snake.
			for snakeX > prevX+1 && snakeY > prevY {
				snakeX--
				snakeY--
				match[snakeX] = snakeY
			}
		}

		x, y = prevX, prevY
	}

	// Leading snake at depth 0.
	for x > 0 && y > 0 {
		x--
		y--
		match[x] = y
	}

	return match
}
