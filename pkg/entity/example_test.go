package entity_test

import (
	"fmt"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

func ExampleBuildKey() {
	key := entity.BuildKey("demo", entity.TypeFunction, "python", "hello", "f1")
	fmt.Println(key)

	parts, _ := entity.ParseKey(key)
	fmt.Println(parts.Project, parts.Type, parts.Kind, parts.Name, parts.ID)

	// Output:
	// store://demo/functions/python/hello:f1
	// demo functions python hello f1
}

func ExampleValidTransition() {
	fmt.Println(entity.ValidTransition(entity.StateCreated, entity.StateBuilt))
	fmt.Println(entity.ValidTransition(entity.StateCompleted, entity.StateRunning))

	// Output:
	// true
	// false
}
