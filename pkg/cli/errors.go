/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import "errors"

var (
	errUnknownSubcommand = errors.New("unknown subcommand")
	errCoordinateMissing = errors.New("start requires -coord or -clipboard")
	errCoordinateTwice   = errors.New("use either -coord or -clipboard, not both")
	errClipboardRead     = errors.New("failed to read coordinate from clipboard")
	errMirrorDisabled    = errors.New("mirror.enabled is false in the configuration")
	errLoadConfig        = errors.New("failed to load configuration")
	errKVSourceURL       = errors.New("CONFIG_SOURCE=kv requires GEOSHIM_MIRROR_NATS_URL")
)
