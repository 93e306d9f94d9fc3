package types

import (
	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace every flashswap error is registered under.
const ModuleName = "flashswap"

var (
	ErrInsufficientLiquidity    = errorsmod.Register(ModuleName, 2, "insufficient liquidity")
	ErrInsufficientInputAmount  = errorsmod.Register(ModuleName, 3, "insufficient input amount")
	ErrInsufficientOutputAmount = errorsmod.Register(ModuleName, 4, "insufficient output amount")
	ErrExpired                  = errorsmod.Register(ModuleName, 5, "expired")
	ErrInvalidPath              = errorsmod.Register(ModuleName, 6, "invalid path")
	ErrReentrancy               = errorsmod.Register(ModuleName, 7, "reentrant call")
	ErrInsufficientProfit       = errorsmod.Register(ModuleName, 8, "insufficient profit")
	ErrOverflow                 = errorsmod.Register(ModuleName, 9, "arithmetic overflow")
	ErrUnderflow                = errorsmod.Register(ModuleName, 10, "arithmetic underflow")
	ErrDivisionByZero           = errorsmod.Register(ModuleName, 11, "division by zero")
	ErrExcessiveInputAmount     = errorsmod.Register(ModuleName, 12, "excessive input amount")
	ErrInvalidFee               = errorsmod.Register(ModuleName, 13, "invalid fee")
	ErrInvalidPrice             = errorsmod.Register(ModuleName, 14, "invalid price")
	ErrPoolNotFound             = errorsmod.Register(ModuleName, 15, "pool not found")
	ErrPoolExists               = errorsmod.Register(ModuleName, 16, "pool already exists")
	ErrInvariantViolation       = errorsmod.Register(ModuleName, 17, "constant product invariant violated")
	ErrInvalidState             = errorsmod.Register(ModuleName, 18, "invalid state transition")
	ErrIdenticalAddresses       = errorsmod.Register(ModuleName, 19, "identical addresses")
	ErrZeroAddress              = errorsmod.Register(ModuleName, 20, "zero address")
)
