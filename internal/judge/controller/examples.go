package controller

import "github.com/gin-gonic/gin"

// Canned request and response documents served by the examples
// endpoints. The solve contract is the same one the runner images
// implement: modify the parameters in place, return an exit code.

var exampleC = gin.H{
	"language": "c",
	"user_code": `#include <stdio.h>
int solve(int *a, int *b) {
    *a = *a * 2;
    *b = *b * 2 + 1;
    printf("Hello from C!\n");
    return 0;
}`,
	"solve_params": []gin.H{
		{"name": "a", "type": "int", "input_value": 3},
		{"name": "b", "type": "int", "input_value": 4},
	},
	"expected":      gin.H{"a": 6, "b": 9},
	"function_type": "int",
	"compiler_settings": gin.H{
		"standard": "c11",
		"flags":    "-Wall -O2",
	},
}

var exampleCpp = gin.H{
	"language": "cpp",
	"user_code": `#include <iostream>
int solve(int *a, int *b) {
    *a = *a * 2;
    *b = *b * 2 + 1;
    std::cout << "Hello from C++!" << std::endl;
    return 0;
}`,
	"solve_params": []gin.H{
		{"name": "a", "type": "int", "input_value": 3},
		{"name": "b", "type": "int", "input_value": 4},
	},
	"expected":      gin.H{"a": 6, "b": 9},
	"function_type": "int",
	"compiler_settings": gin.H{
		"standard": "cpp17",
		"flags":    "-Wall -O2",
	},
}

var exampleAdvanced = gin.H{
	"language": "cpp",
	"user_code": `#include <vector>
#include <algorithm>
int solve(std::vector<int> &numbers, int *sum) {
    std::sort(numbers.begin(), numbers.end());
    *sum = 0;
    for (int n : numbers) {
        *sum += n;
    }
    return 0;
}`,
	"solve_params": []gin.H{
		{"name": "numbers", "type": "array_int", "input_value": []int{5, 2, 8, 1}},
		{"name": "sum", "type": "int", "input_value": 0},
	},
	"expected":      gin.H{"numbers": []int{1, 2, 5, 8}, "sum": 16},
	"function_type": "int",
	"compiler_settings": gin.H{
		"standard": "cpp20",
	},
	"resource_limits": gin.H{
		"compile_timeout":   60,
		"execution_timeout": 15,
		"memory_limit":      "256m",
	},
}

var exampleResponse = gin.H{
	"status":   "SUCCESS",
	"message":  "Test completed successfully",
	"match":    true,
	"expected": gin.H{"a": 6, "b": 9},
	"actual":   gin.H{"a": 6, "b": 9},
	"stdout":   "Hello from C!\n",
	"metrics": gin.H{
		"total_execution_time":   1.234,
		"compile_execution_time": 0.987,
		"test_execution_time":    0.247,
		"time_ms":                12.5,
		"maxrss_mb":              3.2,
	},
}

var exampleError = gin.H{
	"status":         "COMPILE_ERROR",
	"message":        "Compilation failed",
	"match":          nil,
	"compile_output": "user.c: In function 'solve':\nuser.c:4:5: error: expected ';' before '*' token",
	"exit_code":      1,
}

var exampleOptimizedBatch = gin.H{
	"language": "c",
	"user_code": `#include <stdio.h>
int solve(int *a, int *b) {
    *a = *a * 2;
    *b = *b * 2 + 1;
    return 0;
}`,
	"configs": []gin.H{
		{
			"solve_params": []gin.H{
				{"name": "a", "type": "int", "input_value": 3},
				{"name": "b", "type": "int", "input_value": 4},
			},
			"expected":      gin.H{"a": 6, "b": 9},
			"function_type": "int",
		},
		{
			"solve_params": []gin.H{
				{"name": "a", "type": "int", "input_value": 5},
				{"name": "b", "type": "int", "input_value": 10},
			},
			"expected":      gin.H{"a": 10, "b": 21},
			"function_type": "int",
		},
		{
			"solve_params": []gin.H{
				{"name": "a", "type": "int", "input_value": 1},
				{"name": "b", "type": "int", "input_value": 2},
			},
			"expected":      gin.H{"a": 2, "b": 5},
			"function_type": "int",
		},
	},
	"compiler_settings": gin.H{
		"standard": "c11",
		"flags":    "-Wall -Wextra -O2",
	},
	"resource_limits": gin.H{
		"compile_timeout":   30,
		"execution_timeout": 10,
	},
	"show_progress": true,
}
