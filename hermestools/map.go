package hermestools

// Map returns fn applied to every element of input, in order.
func Map[T any, Y any](input []T, fn func(T) Y) []Y {
	result := make([]Y, 0, len(input))
	for _, item := range input {
		result = append(result, fn(item))
	}

	return result
}
