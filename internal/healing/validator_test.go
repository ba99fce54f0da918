// internal/healing/validator_test.go
package healing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodCandidate = `import { test, expect } from '@playwright/test';

test('logs in', async ({ page }) => {
  await page.goto('/login');
  await expect(page.locator('#welcome')).toBeVisible();
});`

func TestValidateCode_AcceptsWellFormedCandidate(t *testing.T) {
	t.Parallel()
	res := ValidateCode(goodCandidate)
	assert.True(t, res.OK)
	assert.Empty(t, res.Issues)
}

func TestValidateCode_HardRejects(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		candidate string
		wantIssue string
	}{
		{
			name:      "empty candidate",
			candidate: "   \n\t ",
			wantIssue: "candidate is empty",
		},
		{
			name:      "missing test declaration",
			candidate: "const x = 1;\nexpect(x).toBe(1);",
			wantIssue: "no test declaration",
		},
		{
			name:      "markdown section marker",
			candidate: "### Root Cause\ntest('a', () => { expect(1).toBe(1); });",
			wantIssue: "markdown markers",
		},
		{
			name:      "bold emphasis marker",
			candidate: "**bold** test('a', () => { expect(1).toBe(1); });",
			wantIssue: "markdown markers",
		},
		{
			name:      "unbalanced braces",
			candidate: "test('a', () => { expect(1).toBe(1);",
			wantIssue: "unbalanced",
		},
		{
			name:      "filesystem deletion",
			candidate: "test('a', () => { fs.rmSync('/tmp'); expect(1).toBe(1); });",
			wantIssue: "dangerous construct",
		},
		{
			name:      "shell invocation",
			candidate: "import { execSync } from 'child_process';\ntest('a', () => { expect(1).toBe(1); });",
			wantIssue: "dangerous construct",
		},
		{
			name:      "dynamic evaluation",
			candidate: "test('a', () => { eval('1+1'); expect(1).toBe(1); });",
			wantIssue: "dangerous construct",
		},
		{
			name:      "fs module import",
			candidate: "import * as fs from 'node:fs';\ntest('a', () => { expect(1).toBe(1); });",
			wantIssue: "dangerous construct",
		},
		{
			name:      "process termination",
			candidate: "test('a', () => { process.exit(1); expect(1).toBe(1); });",
			wantIssue: "dangerous construct",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := ValidateCode(tc.candidate)
			require.False(t, res.OK)
			assert.True(t, hasIssueContaining(res.Issues, tc.wantIssue),
				"issues %v should mention %q", res.Issues, tc.wantIssue)
		})
	}
}

func TestValidateCode_MissingAssertionIsSoftWarning(t *testing.T) {
	t.Parallel()
	res := ValidateCode("import { test } from '@playwright/test';\ntest('a', async () => { await page.reload(); });")
	assert.True(t, res.OK, "a missing assertion must not block the candidate")
	assert.True(t, hasIssueContaining(res.Issues, "warning: no assertion"))
}

func hasIssueContaining(issues []string, substr string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, substr) {
			return true
		}
	}
	return false
}
